// Package secrets resolves the chat webhook URL, decrypting it with AWS KMS
// when only the encrypted form is configured.
package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"worklogbot/internal/config"
)

// Decrypter is the part of *kms.Client used here.
type Decrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// NewKMSClient builds a KMS client from the default AWS credential chain
// (environment, shared config, instance or Lambda role).
func NewKMSClient(ctx context.Context) (*kms.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return kms.NewFromConfig(awsCfg), nil
}

// ResolveWebhookURL returns the plaintext webhook URL when set. Otherwise it
// base64-decodes the encrypted URL and decrypts it; newDecrypter is only
// called in that case.
func ResolveWebhookURL(ctx context.Context, cfg config.Config, newDecrypter func(context.Context) (Decrypter, error)) (string, error) {
	if url := strings.TrimSpace(cfg.SlackWebhookURL); url != "" {
		return url, nil
	}
	encrypted := strings.TrimSpace(cfg.EncryptedSlackWebhookURL)
	if encrypted == "" {
		return "", fmt.Errorf("no slack webhook URL configured")
	}

	blob, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decoding encrypted webhook URL: %w", err)
	}

	client, err := newDecrypter(ctx)
	if err != nil {
		return "", err
	}
	out, err := client.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return "", fmt.Errorf("decrypting webhook URL: %w", err)
	}
	url := strings.TrimSpace(string(out.Plaintext))
	if url == "" {
		return "", fmt.Errorf("decrypted webhook URL is empty")
	}
	log.Printf("secrets webhook url decrypted via kms size=%d", len(url))
	return url, nil
}

// DefaultDecrypter adapts NewKMSClient to ResolveWebhookURL.
func DefaultDecrypter(ctx context.Context) (Decrypter, error) {
	client, err := NewKMSClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}
