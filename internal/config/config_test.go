package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memfsdev/memfs/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Validate(config.Default()))
}

func TestByteSizeUnmarshalSuffixes(t *testing.T) {
	cases := map[string]int64{
		"512":    512,
		"1KiB":   1024,
		"2MiB":   2 * 1 << 20,
		"1.5GiB": int64(1.5 * (1 << 30)),
	}
	for in, want := range cases {
		var b config.ByteSize
		require.NoError(t, b.UnmarshalText([]byte(in)), in)
		assert.EqualValues(t, want, b, in)
	}
}

func TestByteSizeUnmarshalRejectsGarbage(t *testing.T) {
	var b config.ByteSize
	assert.Error(t, b.UnmarshalText([]byte("not-a-size")))
}

func TestStoragePolicyUnmarshalValid(t *testing.T) {
	var p config.StoragePolicy
	require.NoError(t, p.UnmarshalText([]byte("RANDOM_ACCESS")))
	assert.Equal(t, config.StorageRandomAccess, p)
}

func TestStoragePolicyUnmarshalInvalid(t *testing.T) {
	var p config.StoragePolicy
	assert.Error(t, p.UnmarshalText([]byte("not-a-policy")))
}

func TestLoadFromViperWithByteSizeStrings(t *testing.T) {
	v := viper.New()
	v.Set("max_quota", "128MiB")
	v.Set("default_storage", "sequential")

	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.EqualValues(t, 128<<20, cfg.MaxQuota)
	assert.Equal(t, config.StorageSequential, cfg.DefaultStorage)
}

func TestValidateRejectsNegativeQuota(t *testing.T) {
	c := config.Default()
	c.MaxQuota = -1
	assert.Error(t, config.Validate(c))
}

func TestValidateRejectsOversizedChunkOverhead(t *testing.T) {
	c := config.Default()
	c.ChunkOverheadEstimate = config.MaxChunkOverheadEstimate + 1
	assert.Error(t, config.Validate(c))
}
