package config

import "time"

type StoreConfig interface {
	GetMongoURI() string
	GetMongoDatabase() string
}

type StorageConfig interface {
	GetUploadBucket() string
	GetUploadRegion() string
	GetUploadEndpoint() string
	GetUploadExpiry() time.Duration
	GetUploadCredentials() (accessKeyID, secretAccessKey string)
}

type Store struct {
	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"authbridge"`
}

var _ StoreConfig = Store{}

// GetMongoURI returns the document store URI. Empty selects the in-memory store.
func (s Store) GetMongoURI() string {
	return s.MongoURI
}

func (s Store) GetMongoDatabase() string {
	return s.MongoDatabase
}

type Storage struct {
	UploadBucket    string        `env:"S3_UPLOAD_BUCKET"`
	UploadRegion    string        `env:"AWS_REGION" envDefault:"us-east-1"`
	UploadEndpoint  string        `env:"S3_ENDPOINT"`
	UploadExpiry    time.Duration `env:"S3_UPLOAD_EXPIRY" envDefault:"1h"`
	AccessKeyID     string        `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"S3_SECRET_ACCESS_KEY"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetUploadBucket() string {
	return s.UploadBucket
}

func (s Storage) GetUploadRegion() string {
	return s.UploadRegion
}

func (s Storage) GetUploadEndpoint() string {
	return s.UploadEndpoint
}

func (s Storage) GetUploadExpiry() time.Duration {
	return s.UploadExpiry
}

// GetUploadCredentials returns static S3 keys. Both empty selects the default AWS credential chain.
func (s Storage) GetUploadCredentials() (string, string) {
	return s.AccessKeyID, s.SecretAccessKey
}
