package archive

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// Encrypted blob layout: magic(8) + salt(16) + nonce(12) + GCM sealed data.
const (
	magic      = "PQARCH01"
	saltLen    = 16
	nonceLen   = 12
	keyIters   = 100000
	keyLen     = 32
	keyPrefix  = "archive/"
	contentExt = ".pdf.enc"
)

// Store retains analyzed documents in S3, encrypted at rest so the bucket
// never holds customer documents in the clear. It satisfies the pipeline's
// Archiver; archival failures are reported, never fatal.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	password string
}

// New builds a Store against the default AWS config chain.
func New(ctx context.Context, bucket, password string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket not configured")
	}
	if password == "" {
		return nil, fmt.Errorf("archive password not configured")
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &Store{
		client:   cli,
		uploader: manager.NewUploader(cli),
		bucket:   bucket,
		password: password,
	}, nil
}

// Ping verifies the bucket is reachable, for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// Archive encrypts the file at localPath and uploads it under the ref key.
// Returns the s3:// location of the stored object.
func (s *Store) Archive(ctx context.Context, localPath, ref string) (string, error) {
	plain, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}

	blob, err := s.encrypt(plain)
	if err != nil {
		return "", fmt.Errorf("encrypt document: %w", err)
	}

	key := keyPrefix + ref + contentExt
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(blob),
		Metadata: map[string]string{
			"encrypted":     "true",
			"archive-magic": magic,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	log.Info().Str("key", key).Int("plain_bytes", len(plain)).
		Int("stored_bytes", len(blob)).Msg("document archived")
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Retrieve downloads and decrypts a previously archived document.
func (s *Store) Retrieve(ctx context.Context, ref string) ([]byte, error) {
	key := keyPrefix + ref + contentExt
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()

	blob, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object: %w", err)
	}
	return s.decrypt(blob)
}

func (s *Store) encrypt(plain []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nil, nonce, plain, nil)

	blob := make([]byte, 0, len(magic)+saltLen+nonceLen+len(sealed))
	blob = append(blob, magic...)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return blob, nil
}

func (s *Store) decrypt(blob []byte) ([]byte, error) {
	header := len(magic) + saltLen + nonceLen
	if len(blob) < header {
		return nil, fmt.Errorf("archived blob too short: %d bytes", len(blob))
	}
	if string(blob[:len(magic)]) != magic {
		return nil, fmt.Errorf("unrecognized archive format")
	}
	salt := blob[len(magic) : len(magic)+saltLen]
	nonce := blob[len(magic)+saltLen : header]

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, blob[header:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt archived blob: %w", err)
	}
	return plain, nil
}

func (s *Store) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(s.password), salt, keyIters, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
