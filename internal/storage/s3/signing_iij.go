package s3

// NewIIJSigner builds the IIJ GIO variant of LegacySigner: identical
// canonicalization to AWS-v2, but with the "x-iijgio-" header prefix and
// "IIJGIO" Authorization scheme.
func NewIIJSigner(accessKey, secretKey, bucketURL string) *LegacySigner {
	return &LegacySigner{
		AccessKey:    accessKey,
		SecretKey:    secretKey,
		AuthScheme:   "IIJGIO",
		HeaderPrefix: "x-iijgio-",
		BucketURL:    bucketURL,
	}
}

// NewAWSLegacySigner builds the AWS-v2 HMAC-SHA1 variant of LegacySigner
// (distinct from aws-sdk-go-v2's own SigV4 client signing used by
// Backend; this path exists for request pipelines that go through
// internal/transport directly, such as GCS/IIJ-style raw HTTP chunked
// transfer, rather than the AWS SDK).
func NewAWSLegacySigner(accessKey, secretKey, bucketURL string) *LegacySigner {
	return &LegacySigner{
		AccessKey:    accessKey,
		SecretKey:    secretKey,
		AuthScheme:   "AWS",
		HeaderPrefix: "x-amz-",
		BucketURL:    bucketURL,
	}
}
