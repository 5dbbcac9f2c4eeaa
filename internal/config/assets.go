package config

import "fmt"

// AssetsConfig selects where generated images are stored and how records link to them.
type AssetsConfig struct {
	Driver    string `yaml:"driver"` // fs, s3, gcs, memory
	Dir       string `yaml:"dir"`    // fs driver
	URLPrefix string `yaml:"url_prefix"`

	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// S3Config configures the S3 / MinIO driver.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// GCSConfig configures the Google Cloud Storage driver.
type GCSConfig struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Credentials string `yaml:"credentials"` // file path or inline JSON
}

func (a *AssetsConfig) validate() error {
	switch a.Driver {
	case "", "fs":
		if a.Dir == "" {
			return fmt.Errorf("assets.dir is required for the fs driver")
		}
	case "s3":
		if a.S3.Bucket == "" {
			return fmt.Errorf("assets.s3.bucket is required for the s3 driver")
		}
	case "gcs":
		if a.GCS.Bucket == "" {
			return fmt.Errorf("assets.gcs.bucket is required for the gcs driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown assets.driver %q", a.Driver)
	}
	return nil
}
