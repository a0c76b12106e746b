package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig - параметры слоя кеша
type CacheConfig struct {
	Namespace  string        `yaml:"namespace"`
	PostTTL    time.Duration `yaml:"post_ttl"`
	ProfileTTL time.Duration `yaml:"profile_ttl"`
	CounterTTL time.Duration `yaml:"counter_ttl"`
	LikersTTL  time.Duration `yaml:"likers_ttl"`
	Breaker    struct {
		MaxRequests      uint32        `yaml:"max_requests"`
		Interval         time.Duration `yaml:"interval"`
		Timeout          time.Duration `yaml:"timeout"`
		FailureThreshold float64       `yaml:"failure_threshold"`
		MinRequests      uint32        `yaml:"min_requests"`
	} `yaml:"breaker"`
}

// RecencyBracket - значение свежести для постов моложе MaxAge
type RecencyBracket struct {
	MaxAge time.Duration `yaml:"max_age"`
	Score  float64       `yaml:"score"`
}

// RankingConfig - веса и константы ранжирования
type RankingConfig struct {
	WeightRecency        float64          `yaml:"weight_recency"`
	WeightEngagement     float64          `yaml:"weight_engagement"`
	WeightAffinity       float64          `yaml:"weight_affinity"`
	RecencyBrackets      []RecencyBracket `yaml:"recency_brackets"`
	DefaultRecencyScore  float64          `yaml:"default_recency_score"`
	LikeWeight           float64          `yaml:"like_weight"`
	CommentWeight        float64          `yaml:"comment_weight"`
	RepostWeight         float64          `yaml:"repost_weight"`
	EngagementSaturation float64          `yaml:"engagement_saturation"`
}

// AffinityConfig - приращения и затухание аффинитета
type AffinityConfig struct {
	LikeScore         float64       `yaml:"like_score"`
	CommentScore      float64       `yaml:"comment_score"`
	RepostScore       float64       `yaml:"repost_score"`
	ProfileVisitScore float64       `yaml:"profile_visit_score"`
	TTL               time.Duration `yaml:"ttl"`
	DecayFactor       float64       `yaml:"decay_factor"`
	DropThreshold     float64       `yaml:"drop_threshold"`
}

type FeedConfig struct {
	CandidatePoolSize int           `yaml:"candidate_pool_size"`
	RankedFeedTTL     time.Duration `yaml:"ranked_feed_ttl"`
	DefaultPerPage    int           `yaml:"default_per_page"`
	MaxPerPage        int           `yaml:"max_per_page"`
}

type PrecomputeConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	FeedSize     int           `yaml:"feed_size"`
	Concurrency  int           `yaml:"concurrency"`
	ActiveWindow time.Duration `yaml:"active_window"`
}

type SchedulerConfig struct {
	PrecomputeSpec string `yaml:"precompute_spec"`
	DecaySpec      string `yaml:"decay_spec"`
	Workers        int    `yaml:"workers"`
	QueueName      string `yaml:"queue_name"`
}

type ConfigSchema struct {
	Databases struct {
		Master   DBConfig   `yaml:"master"`
		Replicas []DBConfig `yaml:"replicas"`
	} `yaml:"databases"`
	Redis    RedisConfig `yaml:"redis"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Backend struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"backend"`
	Logs struct {
		Level string `yaml:"level"`
	} `yaml:"logs"`
	Cache      CacheConfig      `yaml:"cache"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Affinity   AffinityConfig   `yaml:"affinity"`
	Feed       FeedConfig       `yaml:"feed"`
	Precompute PrecomputeConfig `yaml:"precompute"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

var AppConfig *ConfigSchema

func LoadConfig(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	conf, err := Parse(data)
	if err != nil {
		return err
	}
	AppConfig = conf
	return nil
}

// Parse разбирает YAML, заполняет значения по умолчанию и валидирует результат
func Parse(data []byte) (*ConfigSchema, error) {
	conf := &ConfigSchema{}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Default возвращает конфигурацию только со значениями по умолчанию
func Default() *ConfigSchema {
	conf := &ConfigSchema{}
	conf.ApplyDefaults()
	return conf
}

func (c *ConfigSchema) ApplyDefaults() {
	if c.Databases.Master.Port == 0 {
		c.Databases.Master.Port = 5432
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "feed_events"
	}
	if c.Backend.Port == 0 {
		c.Backend.Port = 8080
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}

	cache := &c.Cache
	if cache.Namespace == "" {
		cache.Namespace = "social"
	}
	if cache.PostTTL == 0 {
		cache.PostTTL = time.Hour
	}
	if cache.ProfileTTL == 0 {
		cache.ProfileTTL = 30 * time.Minute
	}
	if cache.CounterTTL == 0 {
		cache.CounterTTL = 24 * time.Hour
	}
	if cache.LikersTTL == 0 {
		cache.LikersTTL = 24 * time.Hour
	}
	if cache.Breaker.MaxRequests == 0 {
		cache.Breaker.MaxRequests = 5
	}
	if cache.Breaker.Interval == 0 {
		cache.Breaker.Interval = 30 * time.Second
	}
	if cache.Breaker.Timeout == 0 {
		cache.Breaker.Timeout = 10 * time.Second
	}
	if cache.Breaker.FailureThreshold == 0 {
		cache.Breaker.FailureThreshold = 0.8
	}
	if cache.Breaker.MinRequests == 0 {
		cache.Breaker.MinRequests = 10
	}

	r := &c.Ranking
	if r.WeightRecency == 0 && r.WeightEngagement == 0 && r.WeightAffinity == 0 {
		r.WeightRecency = 0.4
		r.WeightEngagement = 0.35
		r.WeightAffinity = 0.25
	}
	if len(r.RecencyBrackets) == 0 {
		r.RecencyBrackets = []RecencyBracket{
			{MaxAge: time.Hour, Score: 1.0},
			{MaxAge: 6 * time.Hour, Score: 0.8},
			{MaxAge: 24 * time.Hour, Score: 0.6},
			{MaxAge: 72 * time.Hour, Score: 0.4},
			{MaxAge: 168 * time.Hour, Score: 0.2},
		}
	}
	if r.DefaultRecencyScore == 0 {
		r.DefaultRecencyScore = 0.1
	}
	if r.LikeWeight == 0 {
		r.LikeWeight = 1
	}
	if r.CommentWeight == 0 {
		r.CommentWeight = 3
	}
	if r.RepostWeight == 0 {
		r.RepostWeight = 2
	}
	if r.EngagementSaturation == 0 {
		r.EngagementSaturation = 1000
	}

	a := &c.Affinity
	if a.LikeScore == 0 {
		a.LikeScore = 0.05
	}
	if a.CommentScore == 0 {
		a.CommentScore = 0.1
	}
	if a.RepostScore == 0 {
		a.RepostScore = 0.08
	}
	if a.ProfileVisitScore == 0 {
		a.ProfileVisitScore = 0.02
	}
	if a.TTL == 0 {
		a.TTL = 30 * 24 * time.Hour
	}
	if a.DecayFactor == 0 {
		a.DecayFactor = 0.95
	}
	if a.DropThreshold == 0 {
		a.DropThreshold = 0.01
	}

	f := &c.Feed
	if f.CandidatePoolSize == 0 {
		f.CandidatePoolSize = 500
	}
	if f.RankedFeedTTL == 0 {
		f.RankedFeedTTL = 5 * time.Minute
	}
	if f.DefaultPerPage == 0 {
		f.DefaultPerPage = 20
	}
	if f.MaxPerPage == 0 {
		f.MaxPerPage = 100
	}

	p := &c.Precompute
	if p.BatchSize == 0 {
		p.BatchSize = 100
	}
	if p.FeedSize == 0 {
		p.FeedSize = 100
	}
	if p.Concurrency == 0 {
		p.Concurrency = 8
	}
	if p.ActiveWindow == 0 {
		p.ActiveWindow = 7 * 24 * time.Hour
	}

	s := &c.Scheduler
	if s.PrecomputeSpec == "" {
		s.PrecomputeSpec = "*/15 * * * *"
	}
	if s.DecaySpec == "" {
		s.DecaySpec = "0 3 * * *"
	}
	if s.Workers == 0 {
		s.Workers = 2
	}
	if s.QueueName == "" {
		s.QueueName = "feed_jobs"
	}
}

func (c *ConfigSchema) Validate() error {
	r := c.Ranking
	if r.WeightRecency < 0 || r.WeightEngagement < 0 || r.WeightAffinity < 0 {
		return fmt.Errorf("ranking weights must be non-negative")
	}
	if sum := r.WeightRecency + r.WeightEngagement + r.WeightAffinity; math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("ranking weights must sum to 1.0, got %.4f", sum)
	}
	if r.DefaultRecencyScore <= 0 || r.DefaultRecencyScore > 1 {
		return fmt.Errorf("default_recency_score must be in (0, 1]")
	}
	for i, b := range r.RecencyBrackets {
		if b.Score < r.DefaultRecencyScore || b.Score > 1 {
			return fmt.Errorf("recency bracket %d: score must be in [default_recency_score, 1]", i)
		}
		if i > 0 {
			prev := r.RecencyBrackets[i-1]
			if b.MaxAge <= prev.MaxAge || b.Score > prev.Score {
				return fmt.Errorf("recency bracket %d: brackets must be ordered by age with non-increasing scores", i)
			}
		}
	}
	if r.CommentWeight < r.LikeWeight {
		return fmt.Errorf("comment_weight must not be lower than like_weight")
	}
	if r.CommentWeight < r.RepostWeight {
		return fmt.Errorf("comment_weight must not be lower than repost_weight")
	}
	if r.EngagementSaturation <= 0 {
		return fmt.Errorf("engagement_saturation must be positive")
	}

	a := c.Affinity
	if a.DecayFactor <= 0 || a.DecayFactor >= 1 {
		return fmt.Errorf("affinity decay_factor must be in (0, 1)")
	}
	if a.DropThreshold < 0 || a.DropThreshold >= 1 {
		return fmt.Errorf("affinity drop_threshold must be in [0, 1)")
	}
	if c.Feed.DefaultPerPage > c.Feed.MaxPerPage {
		return fmt.Errorf("feed default_per_page must not exceed max_per_page")
	}
	return nil
}

// Addr возвращает адрес в формате host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
