package reliability

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemoteArchives(t *testing.T) {
	now := time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC)

	objects := []types.Object{
		{Key: aws.String("starledger-backup-2025-06-28-030000.tar.gz"), Size: aws.Int64(1024)},
		{Key: aws.String("starledger-backup-2025-06-30-030000.tar.gz"), Size: aws.Int64(2048)},
		{Key: aws.String("unrelated-object.bin"), Size: aws.Int64(99)},
		{Key: aws.String("starledger-backup-not-a-stamp.tar.gz")},
		{Size: aws.Int64(7)},
	}

	archives := parseRemoteArchives(objects, now)
	require.Len(t, archives, 2)

	assert.Equal(t, "starledger-backup-2025-06-30-030000.tar.gz", archives[0].Key)
	assert.Equal(t, int64(2048), archives[0].SizeBytes)
	assert.Equal(t, int64(15), archives[0].AgeHours)

	assert.Equal(t, "starledger-backup-2025-06-28-030000.tar.gz", archives[1].Key)
	assert.Equal(t, int64(63), archives[1].AgeHours)
}

func TestArchivesToDelete(t *testing.T) {
	newestFirst := func(n int) []RemoteArchiveInfo {
		archives := make([]RemoteArchiveInfo, n)
		base := time.Date(2025, 6, 30, 3, 0, 0, 0, time.UTC)
		for i := range archives {
			archives[i] = RemoteArchiveInfo{
				Key:       archivePrefix + base.AddDate(0, 0, -i).Format(stampLayout) + archiveSuffix,
				Timestamp: base.AddDate(0, 0, -i),
			}
		}
		return archives
	}

	t.Run("keeps the newest archives", func(t *testing.T) {
		doomed := archivesToDelete(newestFirst(6), 4)
		require.Len(t, doomed, 2)
		assert.Equal(t, "starledger-backup-2025-06-26-030000.tar.gz", doomed[0].Key)
		assert.Equal(t, "starledger-backup-2025-06-25-030000.tar.gz", doomed[1].Key)
	})

	t.Run("keep below minimum is raised", func(t *testing.T) {
		doomed := archivesToDelete(newestFirst(5), 0)
		assert.Len(t, doomed, 2)
	})

	t.Run("nothing beyond keep", func(t *testing.T) {
		assert.Nil(t, archivesToDelete(newestFirst(3), 7))
		assert.Nil(t, archivesToDelete(nil, 7))
	})
}

func TestS3BackupJobName(t *testing.T) {
	job := NewS3BackupJob(nil, 7)
	assert.Equal(t, "s3_backup", job.Name())
}
