package bootstrap

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/vetclinic-platform/internal/config"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

func testAWSConfig() aws.Config {
	return aws.Config{Region: "us-east-1", Credentials: aws.AnonymousCredentials{}}
}

func TestConnectPostgresRequiresURL(t *testing.T) {
	_, err := ConnectPostgres(context.Background(), "  ")
	require.Error(t, err)
}

func TestBuildRedisClient(t *testing.T) {
	logger := logging.New("error")

	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logger, true))

	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr(), ClinicCacheTTL: time.Minute}
	client := BuildRedisClient(context.Background(), cfg, logger, true)
	require.NotNil(t, client)
	assert.NotNil(t, BuildClinicCache(client, cfg))

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logger, true), "unreachable redis disables the cache")
	assert.Nil(t, BuildClinicCache(nil, cfg))
}

func TestBuildNotifierDefaultsToLog(t *testing.T) {
	n := BuildNotifier(&appconfig.Config{}, testAWSConfig(), logging.New("error"))
	_, ok := n.(*notify.LogNotifier)
	assert.True(t, ok, "expected log notifier, got %T", n)
}

func TestBuildNotifierChannels(t *testing.T) {
	logger := logging.New("error")

	n := BuildNotifier(&appconfig.Config{NotifyQueueURL: "http://localhost:4566/000000000000/confirmations"}, testAWSConfig(), logger)
	_, ok := n.(*notify.SQSNotifier)
	assert.True(t, ok, "expected sqs notifier, got %T", n)

	n = BuildNotifier(&appconfig.Config{EmailProvider: "stub"}, testAWSConfig(), logger)
	_, ok = n.(*notify.EmailNotifier)
	assert.True(t, ok, "expected email notifier, got %T", n)

	n = BuildNotifier(&appconfig.Config{
		NotifyQueueURL: "http://localhost:4566/000000000000/confirmations",
		EmailProvider:  "ses",
		EmailFrom:      "noreply@clinic.example",
	}, testAWSConfig(), logger)
	fan, ok := n.(notify.Fanout)
	require.True(t, ok, "expected fanout, got %T", n)
	assert.Len(t, fan, 2)
}

func TestBuildNotifierSkipsMisconfiguredEmail(t *testing.T) {
	logger := logging.New("error")
	for _, provider := range []string{"sendgrid", "carrier-pigeon"} {
		n := BuildNotifier(&appconfig.Config{EmailProvider: provider}, testAWSConfig(), logger)
		_, ok := n.(*notify.LogNotifier)
		assert.True(t, ok, "%s: expected log notifier, got %T", provider, n)
	}
}
