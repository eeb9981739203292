package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusLabel(nil))
	assert.Equal(t, StatusError, StatusLabel(errors.New("exit status 2")))
}

func TestBackupCountIncrements(t *testing.T) {
	before := testutil.ToFloat64(BackupCount.WithLabelValues("metrics_test", StatusSuccess))
	BackupCount.WithLabelValues("metrics_test", StatusSuccess).Inc()
	after := testutil.ToFloat64(BackupCount.WithLabelValues("metrics_test", StatusSuccess))

	assert.Equal(t, before+1, after)
}
