package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"HOST", "PORT", "LOG_LEVEL", "REQUEST_TIMEOUT", "UPSTREAM_TIMEOUT",
	"MAX_REQUEST_BODY_SIZE", "MAX_UPLOAD_SIZE", "BAIDU_BASE_URL", "BAIDU_BAIKE_NUM",
	"STORAGE_BACKEND", "OSS_ENDPOINT", "BAIDU_API_KEY", "BAIDU_SECRET_KEY",
	"OSS_ACCESS_KEY_ID", "OSS_ACCESS_KEY_SECRET", "OSS_REGION", "OSS_BUCKET",
	"AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY", "AZURE_CONTAINER", "AZURE_SERVICE_URL",
	"CONFIG_FILE",
}

// isolateEnv blanks every key the loader reads and points ENV_FILE at a
// file that does not exist.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BAIDU_API_KEY", "api-key")
	t.Setenv("BAIDU_SECRET_KEY", "secret-key")
	t.Setenv("OSS_ACCESS_KEY_ID", "oss-id")
	t.Setenv("OSS_ACCESS_KEY_SECRET", "oss-secret")
	t.Setenv("OSS_REGION", "oss-cn-hangzhou")
	t.Setenv("OSS_BUCKET", "plants")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	isolateEnv(t)
	setValidEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.ServerAddress())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxUploadSize)
	assert.Equal(t, "https://aip.baidubce.com", cfg.BaiduBaseURL)
	assert.Equal(t, BackendOSS, cfg.StorageBackend)
	assert.Equal(t, "https://plants.oss-cn-hangzhou.aliyuncs.com", cfg.OSSHost())
	assert.Equal(t, "api-key", cfg.Credentials.RecognitionKeyID)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	isolateEnv(t)
	setValidEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("UPSTREAM_TIMEOUT", "not-a-duration")
	t.Setenv("OSS_ENDPOINT", "http://127.0.0.1:9000/")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.ServerAddress())
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout, "invalid durations keep the default")
	assert.Equal(t, "http://127.0.0.1:9000", cfg.OSSHost())
}

func TestLoadFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"invalid port", map[string]string{"PORT": "99999"}, "invalid PORT"},
		{"missing recognition key", map[string]string{"BAIDU_API_KEY": ""}, "BAIDU_API_KEY"},
		{"missing bucket", map[string]string{"OSS_BUCKET": ""}, "OSS_BUCKET"},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "s3"}, "unsupported STORAGE_BACKEND"},
		{"azure without account", map[string]string{"STORAGE_BACKEND": "azure"}, "AZURE_ACCOUNT_NAME"},
		{"zero upload size", map[string]string{"MAX_UPLOAD_SIZE": "0"}, "MAX_UPLOAD_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			setValidEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromEnv_ConfigFile(t *testing.T) {
	isolateEnv(t)
	t.Setenv("BAIDU_SECRET_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "plant.toml")
	content := `
port = "8081"
storage_backend = "azure"

[credentials]
recognition_key_id = "file-key"
recognition_secret = "file-secret"

[azure]
account_name = "devstore"
account_key = "a2V5"
container = "plants"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, BackendAzure, cfg.StorageBackend)
	assert.Equal(t, "file-key", cfg.Credentials.RecognitionKeyID)
	assert.Equal(t, "from-env", cfg.Credentials.RecognitionSecret, "environment wins over file")
	assert.Equal(t, "plants", cfg.Azure.Container)
}

func TestLoadFromEnv_DotEnvFile(t *testing.T) {
	isolateEnv(t)
	setValidEnv(t)
	os.Unsetenv("OSS_BUCKET")
	t.Cleanup(func() { os.Unsetenv("OSS_BUCKET") })

	path := filepath.Join(t.TempDir(), "1.env")
	require.NoError(t, os.WriteFile(path, []byte("OSS_BUCKET=dotenv-bucket\n"), 0o600))
	t.Setenv("ENV_FILE", path)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "dotenv-bucket", cfg.Credentials.StorageBucket)
}
