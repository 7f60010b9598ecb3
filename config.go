package imgmzx

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/wmlabtx/imgmzx/blobstore"
	"github.com/wmlabtx/imgmzx/codec"
	"github.com/wmlabtx/imgmzx/vectorstore"
)

// MirrorKind selects the offsite copy backend.
type MirrorKind string

const (
	// MirrorNone disables the offsite copy.
	MirrorNone MirrorKind = ""
	// MirrorMinIO uses MinIO or another S3-compatible server.
	MirrorMinIO MirrorKind = "minio"
	// MirrorS3 uses Amazon S3 with the default AWS credential chain.
	MirrorS3 MirrorKind = "s3"
)

// MirrorConfig configures the offsite copy.
type MirrorConfig struct {
	Kind      MirrorKind `mapstructure:"kind"`
	Endpoint  string     `mapstructure:"endpoint"`
	Bucket    string     `mapstructure:"bucket"`
	Prefix    string     `mapstructure:"prefix"`
	AccessKey string     `mapstructure:"access_key"`
	SecretKey string     `mapstructure:"secret_key"`
	UseSSL    bool       `mapstructure:"use_ssl"`
	Region    string     `mapstructure:"region"`
}

// Config holds every setting of a DB.
type Config struct {
	// Root holds the primary copies. Required.
	Root string `mapstructure:"root"`
	// Backup holds the replica copies. Required, must differ from Root.
	Backup string `mapstructure:"backup"`
	// Archive receives deleted objects. Required.
	Archive string `mapstructure:"archive"`
	// Trash receives superseded copies. Defaults to <Archive>/trash.
	Trash string `mapstructure:"trash"`
	// Ext is the object file extension.
	Ext string `mapstructure:"ext"`

	// KDFIterations is the PBKDF2 iteration count. Changing it makes
	// existing objects unreadable.
	KDFIterations int `mapstructure:"kdf_iterations"`
	// Salt overrides the built-in PBKDF2 salt. Empty keeps the default.
	Salt string `mapstructure:"salt"`

	// VectorDimension is the embedding length.
	VectorDimension int `mapstructure:"vector_dimension"`
	// GrowthStep is the number of arena slots added per growth.
	GrowthStep int `mapstructure:"growth_step"`
	// SnapshotPath, when set, persists the arena across Open and Close.
	SnapshotPath string `mapstructure:"snapshot_path"`
	// SnapshotCompression is "none", "lz4" or "zstd".
	SnapshotCompression string `mapstructure:"snapshot_compression"`

	// MinFreeBytes is kept free on each volume after a write.
	MinFreeBytes uint64 `mapstructure:"min_free_bytes"`
	// MemoryLimitBytes caps the arena backing block. 0 means unlimited.
	MemoryLimitBytes int64 `mapstructure:"memory_limit_bytes"`
	// Workers bounds concurrent refreshes.
	Workers int `mapstructure:"workers"`
	// EmbedRate limits embedding calls per second. 0 means unlimited.
	EmbedRate float64 `mapstructure:"embed_rate"`

	// MetadataDir is the Badger directory. Empty keeps records in memory.
	MetadataDir string `mapstructure:"metadata_dir"`

	Mirror MirrorConfig `mapstructure:"mirror"`
}

// DefaultConfig returns a configuration with every optional field set.
// The directory fields are left empty.
func DefaultConfig() Config {
	return Config{
		Ext:                 blobstore.DefaultExt,
		KDFIterations:       codec.DefaultIterations,
		VectorDimension:     768,
		GrowthStep:          vectorstore.DefaultGrowthStep,
		SnapshotCompression: vectorstore.CompressionZSTD.String(),
		MinFreeBytes:        1 << 30,
		Workers:             4,
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	for _, d := range []struct{ name, dir string }{
		{"root", c.Root}, {"backup", c.Backup}, {"archive", c.Archive},
	} {
		if d.dir == "" {
			errs = append(errs, fmt.Errorf("%s is required", d.name))
		}
	}
	if c.Root != "" && filepath.Clean(c.Root) == filepath.Clean(c.Backup) {
		errs = append(errs, errors.New("root and backup must differ"))
	}
	if c.KDFIterations <= 0 {
		errs = append(errs, fmt.Errorf("kdf_iterations must be positive, got %d", c.KDFIterations))
	}
	if c.VectorDimension <= 0 {
		errs = append(errs, fmt.Errorf("vector_dimension must be positive, got %d", c.VectorDimension))
	}
	if c.GrowthStep <= 0 {
		errs = append(errs, fmt.Errorf("growth_step must be positive, got %d", c.GrowthStep))
	}
	if _, err := parseCompression(c.SnapshotCompression); err != nil {
		errs = append(errs, err)
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.EmbedRate < 0 || c.MemoryLimitBytes < 0 {
		errs = append(errs, errors.New("embed_rate and memory_limit_bytes must not be negative"))
	}
	switch c.Mirror.Kind {
	case MirrorNone:
	case MirrorMinIO:
		if c.Mirror.Endpoint == "" || c.Mirror.Bucket == "" {
			errs = append(errs, errors.New("mirror endpoint and bucket are required for minio"))
		}
	case MirrorS3:
		if c.Mirror.Bucket == "" {
			errs = append(errs, errors.New("mirror bucket is required for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mirror kind %q", c.Mirror.Kind))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func parseCompression(s string) (vectorstore.Compression, error) {
	for _, c := range []vectorstore.Compression{
		vectorstore.CompressionNone, vectorstore.CompressionLZ4, vectorstore.CompressionZSTD,
	} {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown snapshot_compression %q", s)
}

// NewViper returns a viper instance holding the defaults of DefaultConfig,
// the file at path (TOML, YAML or JSON by extension; skipped when path is
// empty) and IMGMZX_ environment overrides such as IMGMZX_MIRROR_BUCKET.
//
// Precedence (highest to lowest): bound flags, environment, file, defaults.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("IMGMZX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// LoadConfig reads the configuration at path. See NewViper.
func LoadConfig(path string) (Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return Config{}, err
	}
	return ConfigFromViper(v)
}

// ConfigFromViper decodes and validates the configuration held by v.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setViperDefaults registers every key, so AutomaticEnv can override keys
// that appear in neither the file nor the defaults.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("root", d.Root)
	v.SetDefault("backup", d.Backup)
	v.SetDefault("archive", d.Archive)
	v.SetDefault("trash", d.Trash)
	v.SetDefault("ext", d.Ext)

	v.SetDefault("kdf_iterations", d.KDFIterations)
	v.SetDefault("salt", d.Salt)

	v.SetDefault("vector_dimension", d.VectorDimension)
	v.SetDefault("growth_step", d.GrowthStep)
	v.SetDefault("snapshot_path", d.SnapshotPath)
	v.SetDefault("snapshot_compression", d.SnapshotCompression)

	v.SetDefault("min_free_bytes", d.MinFreeBytes)
	v.SetDefault("memory_limit_bytes", d.MemoryLimitBytes)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("embed_rate", d.EmbedRate)
	v.SetDefault("metadata_dir", d.MetadataDir)

	v.SetDefault("mirror.kind", string(d.Mirror.Kind))
	v.SetDefault("mirror.endpoint", d.Mirror.Endpoint)
	v.SetDefault("mirror.bucket", d.Mirror.Bucket)
	v.SetDefault("mirror.prefix", d.Mirror.Prefix)
	v.SetDefault("mirror.access_key", d.Mirror.AccessKey)
	v.SetDefault("mirror.secret_key", d.Mirror.SecretKey)
	v.SetDefault("mirror.use_ssl", d.Mirror.UseSSL)
	v.SetDefault("mirror.region", d.Mirror.Region)
}
