package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/southpark/southpark/internal/models"
)

// S3Archiver writes run snapshots to object storage under keys like:
//
//	s3://<bucket>/<prefix>/YYYY/MM/DD/<runID>.json
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Archiver creates an S3Archiver. Region and credentials come from
// the environment (AWS_REGION, AWS_PROFILE, key pair, and so on).
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

type runSnapshot struct {
	Run  RunRecord                 `json:"run"`
	Rows []models.AllocationRecord `json:"rows"`
}

// ArchiveRun uploads the run record together with every allocation row
// it committed.
func (a *S3Archiver) ArchiveRun(ctx context.Context, run RunRecord, rows []models.AllocationRecord) error {
	body, err := json.Marshal(runSnapshot{Run: run, Rows: rows})
	if err != nil {
		return fmt.Errorf("marshal run snapshot: %w", err)
	}
	key := path.Join(a.prefix,
		run.TS.Format("2006/01/02"),
		run.RunID.String()+".json")
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive run %s: %w", run.RunID, err)
	}
	return nil
}
