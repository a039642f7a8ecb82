package rds

import (
	"context"
	"time"

	awsrds "github.com/aws/aws-sdk-go-v2/service/rds"
)

// throttledClient waits a fixed delay before every RDS API request,
// including each page of a paginated listing
type throttledClient struct {
	api   rdsAPI
	delay time.Duration
	wait  func(ctx context.Context, d time.Duration) error
}

func newThrottledClient(api rdsAPI, delay time.Duration) *throttledClient {
	return &throttledClient{api: api, delay: delay, wait: sleep}
}

func (t *throttledClient) DescribeDBLogFiles(ctx context.Context, params *awsrds.DescribeDBLogFilesInput, optFns ...func(*awsrds.Options)) (*awsrds.DescribeDBLogFilesOutput, error) {
	if err := t.wait(ctx, t.delay); err != nil {
		return nil, err
	}
	return t.api.DescribeDBLogFiles(ctx, params, optFns...)
}

func (t *throttledClient) DownloadDBLogFilePortion(ctx context.Context, params *awsrds.DownloadDBLogFilePortionInput, optFns ...func(*awsrds.Options)) (*awsrds.DownloadDBLogFilePortionOutput, error) {
	if err := t.wait(ctx, t.delay); err != nil {
		return nil, err
	}
	return t.api.DownloadDBLogFilePortion(ctx, params, optFns...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
