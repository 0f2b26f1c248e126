package s3

import (
	"github.com/s3fuse/corefs/internal/transport"
)

// MultipartStrategy names the upload-multi wire protocol a Provider uses
// (spec.md §4.5): AWS/IIJ use the uploadId/partNumber scheme, GCS uses a
// single resumable session.
type MultipartStrategy int

const (
	MultipartStrategyUploadID MultipartStrategy = iota
	MultipartStrategyResumable
)

// Provider is the polymorphic service-adapter surface spec.md §4.2
// describes: capabilities and identifiers that differ per object store,
// plus the transport.Hook that signs requests for it.
type Provider interface {
	Name() string
	HeaderPrefix() string // "x-amz-", "x-goog-", or "x-iijgio-"
	MetaPrefix() string   // header prefix for user metadata, e.g. "x-amz-meta-"
	BucketURL() string
	NextMarkerSupported() bool
	Hook() transport.Hook
	MultipartStrategy() MultipartStrategy
	DefaultChunkSize() int64
}

// AWSProvider is the Provider for Amazon S3 (and S3-compatible
// endpoints) when driven through internal/transport directly rather
// than through Backend's aws-sdk-go-v2 client.
type AWSProvider struct {
	bucketURL string
	signer    *LegacySigner
}

// NewAWSProvider builds an AWSProvider with its legacy HMAC-SHA1 signer.
func NewAWSProvider(accessKey, secretKey, bucketURL string) *AWSProvider {
	return &AWSProvider{bucketURL: bucketURL, signer: NewAWSLegacySigner(accessKey, secretKey, bucketURL)}
}

func (p *AWSProvider) Name() string                        { return "aws" }
func (p *AWSProvider) HeaderPrefix() string                 { return "x-amz-" }
func (p *AWSProvider) MetaPrefix() string                   { return "x-amz-meta-" }
func (p *AWSProvider) BucketURL() string                    { return p.bucketURL }
func (p *AWSProvider) NextMarkerSupported() bool             { return true }
func (p *AWSProvider) Hook() transport.Hook                 { return p.signer }
func (p *AWSProvider) MultipartStrategy() MultipartStrategy { return MultipartStrategyUploadID }
func (p *AWSProvider) DefaultChunkSize() int64              { return 5 * 1024 * 1024 }

// IIJProvider is the Provider for IIJ GIO, which shares AWS's wire
// protocol shape but a distinct header prefix and signing scheme name.
type IIJProvider struct {
	bucketURL string
	signer    *LegacySigner
}

// NewIIJProvider builds an IIJProvider with its legacy HMAC-SHA1 signer.
func NewIIJProvider(accessKey, secretKey, bucketURL string) *IIJProvider {
	return &IIJProvider{bucketURL: bucketURL, signer: NewIIJSigner(accessKey, secretKey, bucketURL)}
}

func (p *IIJProvider) Name() string                        { return "iij" }
func (p *IIJProvider) HeaderPrefix() string                 { return "x-iijgio-" }
func (p *IIJProvider) MetaPrefix() string                   { return "x-iijgio-meta-" }
func (p *IIJProvider) BucketURL() string                    { return p.bucketURL }
func (p *IIJProvider) NextMarkerSupported() bool             { return true }
func (p *IIJProvider) Hook() transport.Hook                 { return p.signer }
func (p *IIJProvider) MultipartStrategy() MultipartStrategy { return MultipartStrategyUploadID }
func (p *IIJProvider) DefaultChunkSize() int64              { return 5 * 1024 * 1024 }

// GCSProvider is the Provider for Google Cloud Storage's XML API, which
// uses OAuth2 bearer signing and a single resumable-session multipart
// strategy instead of the uploadId/partNumber scheme.
type GCSProvider struct {
	bucketURL string
	signer    *GCSSigner
}

// NewGCSProvider wraps an already-constructed GCSSigner (token exchange
// requires a live HTTP round trip, so GCSSigner is built separately via
// NewGCSSigner and handed in here).
func NewGCSProvider(bucketURL string, signer *GCSSigner) *GCSProvider {
	return &GCSProvider{bucketURL: bucketURL, signer: signer}
}

func (p *GCSProvider) Name() string                        { return "gcs" }
func (p *GCSProvider) HeaderPrefix() string                 { return "x-goog-" }
func (p *GCSProvider) MetaPrefix() string                   { return "x-goog-meta-" }
func (p *GCSProvider) BucketURL() string                    { return p.bucketURL }
func (p *GCSProvider) NextMarkerSupported() bool             { return true }
func (p *GCSProvider) Hook() transport.Hook                 { return p.signer }
func (p *GCSProvider) MultipartStrategy() MultipartStrategy { return MultipartStrategyResumable }
func (p *GCSProvider) DefaultChunkSize() int64              { return 256 * 1024 }
