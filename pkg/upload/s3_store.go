// Package upload сохраняет пользовательские файлы (логотипы, вложения) в S3-совместимое хранилище.
package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxSize ограничивает размер загружаемого файла
const MaxSize = 10 << 20

var (
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("file is empty")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// allowedTypes сопоставляет принимаемые типы с расширением ключа
var allowedTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
}

// Store сохраняет байты и возвращает публичный адрес файла
type Store interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
}

// s3API перечисляет используемые методы клиента S3
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config хранит параметры подключения к бакету
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string // MinIO, LocalStack и т.п.
	Prefix        string
	PublicBaseURL string // CDN или публичный адрес бакета
}

// S3Store хранит файлы под ключом из sha256 содержимого, повторная загрузка не дублирует объект
type S3Store struct {
	client  s3API
	bucket  string
	prefix  string
	baseURL string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg), nil
}

func newS3Store(client s3API, cfg S3Config) *S3Store {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		switch {
		case cfg.Endpoint != "":
			base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		default:
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, baseURL: base}
}

// DetectType проверяет размер и тип файла. Тип определяется по содержимому,
// заявленный клиентом используется только для svg и текста, которые сниффер не различает.
func DetectType(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxSize {
		return "", ErrTooLarge
	}
	detected := http.DetectContentType(data)
	if i := strings.Index(detected, ";"); i >= 0 {
		detected = detected[:i]
	}
	if detected == "text/plain" || detected == "text/xml" {
		if d := strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]); d == "image/svg+xml" {
			detected = d
		}
	}
	if _, ok := allowedTypes[detected]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, detected)
	}
	return detected, nil
}

func (s *S3Store) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	ct, err := DetectType(data, contentType)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	key := s.prefix + hex.EncodeToString(sum[:]) + allowedTypes[ct]
	url := s.baseURL + "/" + key

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err == nil {
		return url, nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ct),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return url, nil
}
