package rds

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsrds "github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/smithy-go/middleware"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SteelMorgan/rds-log-streamer/internal/observability"
)

// rdsAPI is the subset of the RDS client used by AWSSource
type rdsAPI interface {
	DescribeDBLogFiles(ctx context.Context, params *awsrds.DescribeDBLogFilesInput, optFns ...func(*awsrds.Options)) (*awsrds.DescribeDBLogFilesOutput, error)
	DownloadDBLogFilePortion(ctx context.Context, params *awsrds.DownloadDBLogFilePortionInput, optFns ...func(*awsrds.Options)) (*awsrds.DownloadDBLogFilePortionOutput, error)
}

// AWSSource implements LogSource on top of the RDS API
type AWSSource struct {
	client        rdsAPI
	downloadLines int32
	serverTime    func(middleware.Metadata) (time.Time, bool)
	now           func() time.Time
}

// NewAWSSource creates a source using the default AWS credential chain.
// region may be empty to use the environment/shared config region.
// Every API request is preceded by callDelay.
func NewAWSSource(ctx context.Context, region string, downloadLines int, callDelay time.Duration) (*AWSSource, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	log.Info().
		Str("region", cfg.Region).
		Dur("call_delay", callDelay).
		Msg("RDS client initialized")

	return newAWSSource(newThrottledClient(awsrds.NewFromConfig(cfg), callDelay), downloadLines), nil
}

func newAWSSource(client rdsAPI, downloadLines int) *AWSSource {
	return &AWSSource{
		client:        client,
		downloadLines: int32(downloadLines),
		serverTime:    awsmiddleware.GetServerTime,
		now:           time.Now,
	}
}

// ListLogFiles lists all log files of an instance, following pagination
func (s *AWSSource) ListLogFiles(ctx context.Context, instanceID string) (listing *LogFileListing, err error) {
	ctx, span := observability.StartSpan(ctx, "rds.list_log_files", attribute.String("db.instance", instanceID))
	defer func() {
		observability.IncAPICall("describe_db_log_files", err)
		observability.EndSpan(span, err)
	}()

	log.Debug().
		Str("instance", instanceID).
		Msg("Checking log file descriptions")

	listing = &LogFileListing{}
	input := &awsrds.DescribeDBLogFilesInput{DBInstanceIdentifier: aws.String(instanceID)}

	for page := 0; ; page++ {
		out, err := s.client.DescribeDBLogFiles(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describe log files for %s: %w", instanceID, err)
		}

		if page == 0 {
			listing.ServerTimeMs = s.responseTimeMs(out.ResultMetadata, instanceID)
		}

		for _, f := range out.DescribeDBLogFiles {
			listing.Files = append(listing.Files, RemoteLogFile{
				Name:          aws.ToString(f.LogFileName),
				LastWrittenMs: aws.ToInt64(f.LastWritten),
				Size:          aws.ToInt64(f.Size),
			})
		}

		if aws.ToString(out.Marker) == "" {
			break
		}
		input.Marker = out.Marker
	}

	return listing, nil
}

// DownloadPortion downloads the log data after marker
func (s *AWSSource) DownloadPortion(ctx context.Context, instanceID, fileName, marker string) (portion *LogPortion, err error) {
	ctx, span := observability.StartSpan(ctx, "rds.download_portion",
		attribute.String("db.instance", instanceID),
		attribute.String("log.file", fileName),
		attribute.String("log.marker", marker),
	)
	defer func() {
		observability.IncAPICall("download_db_log_file_portion", err)
		observability.EndSpan(span, err)
	}()

	log.Info().
		Str("instance", instanceID).
		Str("file", fileName).
		Str("marker", marker).
		Msg("Downloading log file portion")

	input := &awsrds.DownloadDBLogFilePortionInput{
		DBInstanceIdentifier: aws.String(instanceID),
		LogFileName:          aws.String(fileName),
		Marker:               aws.String(marker),
	}
	if s.downloadLines > 0 {
		input.NumberOfLines = aws.Int32(s.downloadLines)
	}

	out, err := s.client.DownloadDBLogFilePortion(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s at marker %s: %w", instanceID, fileName, marker, err)
	}

	return &LogPortion{
		Content:     aws.ToString(out.LogFileData),
		NextMarker:  aws.ToString(out.Marker),
		MorePending: aws.ToBool(out.AdditionalDataPending),
	}, nil
}

// responseTimeMs returns the server's Date header in milliseconds, truncated
// to whole seconds. Falls back to the local UTC clock if the header is absent.
func (s *AWSSource) responseTimeMs(md middleware.Metadata, instanceID string) int64 {
	t, ok := s.serverTime(md)
	if !ok {
		log.Warn().
			Str("instance", instanceID).
			Msg("Response has no server time, using local clock")
		t = s.now()
	}
	return t.UTC().Unix() * 1000
}
