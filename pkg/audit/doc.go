// Package audit records one line per HTTP request for security review.
//
// # Record Format
//
//	2024-05-01T12:00:00Z - audit - INFO - method=GET path=/users/7c1e... status=403 client_ip=10.0.0.4 client_port=51234 request_id=<NA> user_id=2b9f... role=user jti=5d0a...
//
// Fields that cannot be determined are written as <NA>. user_id, role and
// jti are read from the bearer token WITHOUT verifying it, so they show what
// the caller claimed, not who they proved to be. Compare with status to tell
// the two apart.
//
// # Usage Example
//
//	writer, err := audit.NewRotatingFileWriter(audit.RotatingFileConfig{
//		Dir:      "/var/log/iam",
//		MaxSize:  100 << 20,
//		MaxFiles: 10,
//	})
//	if err != nil {
//		return err
//	}
//	recorder := audit.NewRecorder(codec, audit.NewLogrusSink(writer), logger, metrics)
//	handler = recorder.Handler(handler)
//
// Rotated files can be shipped to S3 by passing S3Archiver.Enqueue as
// RotatingFileConfig.OnRotate.
package audit
