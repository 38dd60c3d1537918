package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/plant-inspector-go/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Credentials = config.Credentials{
		StorageKeyID:  "oss-id",
		StorageSecret: "oss-secret",
		StorageRegion: "oss-cn-hangzhou",
		StorageBucket: "plants",
	}
	cfg.Azure = config.AzureConfig{
		AccountName: "devstoreaccount1",
		AccountKey:  "a2V5",
		Container:   "plants",
	}
	return cfg
}

func TestCreateStorage_OSS(t *testing.T) {
	s, err := NewStorageFactory(testConfig()).CreateStorage(OSSStorage)
	require.NoError(t, err)

	assert.Equal(t, "oss", s.Uploader.Backend())
	require.NotNil(t, s.Signer)
	assert.Equal(t, "https://plants.oss-cn-hangzhou.aliyuncs.com", s.Signer.Host())
}

func TestCreateStorage_Azure(t *testing.T) {
	s, err := NewStorageFactory(testConfig()).CreateStorage(AzureStorage)
	require.NoError(t, err)

	assert.Equal(t, "azure", s.Uploader.Backend())
	assert.Nil(t, s.Signer)
}

func TestCreateStorage_AzureBadKey(t *testing.T) {
	cfg := testConfig()
	cfg.Azure.AccountKey = "not base64!"

	_, err := NewStorageFactory(cfg).CreateStorage(AzureStorage)
	assert.Error(t, err)
}

func TestCreateStorage_Unsupported(t *testing.T) {
	_, err := NewStorageFactory(testConfig()).CreateStorage("local")
	assert.EqualError(t, err, "unsupported storage type: local")
}
