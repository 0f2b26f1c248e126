/*
Package s3 implements types.Backend against S3-compatible object storage
through aws-sdk-go-v2 clients; when CargoShip optimization is enabled,
PutObject sends through CargoShip's transporter. The package also holds
the AWS-legacy, IIJ and GCS signing hooks and the Provider descriptions
(provider.go) for the internal/transport request pipeline; Backend does
not use them for its own requests.

# Architecture

	┌───────────────────────────────────────────┐
	│              types.Backend                │
	└───────────────────────────────────────────┘
	                    │
	┌───────────────────────────────────────────┐
	│   Backend: connection pool, retries,      │
	│   multipart state machine, metrics        │
	└───────────────────────────────────────────┘
	                    │
	┌───────────────────────────────────────────┐
	│  aws-sdk-go-v2 S3 client                  │
	│  (+ CargoShip transporter for PutObject)  │
	└───────────────────────────────────────────┘
	                    │
	┌───────────────────────────────────────────┐
	│        S3-compatible object store          │
	└───────────────────────────────────────────┘

# Configuration

	config := &s3.Config{
		Region:         "us-west-2",
		Endpoint:       "",   // empty selects AWS's default endpoint
		ForcePathStyle: false,
		MaxRetries:     3,
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
		PoolSize:       8,
	}

# Usage

	backend, err := s3.NewBackend(ctx, "my-bucket", config)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	err = backend.PutObject(ctx, "data/file.txt", data)
	data, err := backend.GetObject(ctx, "data/file.txt", 0, -1)
	info, err := backend.HeadObject(ctx, "data/file.txt")

PutObject does not switch to multipart_exec.go by itself; multipart
uploads through it are driven by the caller (internal/transfer) via
BeginMultipartUploadRaw, UploadPart, CompleteMultipartUpload and
AbortMultipartUpload.

# Thread safety

Backend's public methods are safe for concurrent use; the connection
pool and metrics counters are synchronized internally.
*/
package s3
