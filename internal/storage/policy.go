package storage

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
)

const (
	// PolicyWindow is how long a signed upload policy stays valid.
	PolicyWindow = time.Hour
	// MaxObjectSize is the upper bound of the content-length-range condition.
	MaxObjectSize = 100 * 1024 * 1024

	policyTimeFormat = "2006-01-02T15:04:05.000Z"
)

// Policy is the OSS PostObject policy document.
type Policy struct {
	Expiration string          `json:"expiration"`
	Conditions [][]interface{} `json:"conditions"`
}

// SignedUpload is everything a caller needs to POST a file straight to the bucket.
type SignedUpload struct {
	UploadURL  string            `json:"upload_url"`
	Key        string            `json:"key"`
	Expiration time.Time         `json:"expiration"`
	Fields     map[string]string `json:"fields"`
}

// PolicySigner authorizes direct uploads with an HMAC-SHA1 signed policy.
type PolicySigner struct {
	keyID  string
	secret string
	host   string
	now    func() time.Time
}

func NewPolicySigner(keyID, secret, host string) *PolicySigner {
	return &PolicySigner{
		keyID:  keyID,
		secret: secret,
		host:   strings.TrimRight(host, "/"),
		now:    time.Now,
	}
}

// Host is the bucket URL uploads are posted to.
func (s *PolicySigner) Host() string {
	return s.host
}

// NewPolicy builds a policy expiring PolicyWindow after now.
func (s *PolicySigner) NewPolicy() (Policy, time.Time) {
	expiration := s.now().UTC().Add(PolicyWindow)
	return Policy{
		Expiration: expiration.Format(policyTimeFormat),
		Conditions: [][]interface{}{
			{"content-length-range", 0, MaxObjectSize},
			{"starts-with", "$key", ""},
		},
	}, expiration
}

// BuildSignedUpload signs a fresh policy for fileName and returns the form fields.
func (s *PolicySigner) BuildSignedUpload(fileName string) (*SignedUpload, error) {
	key := SanitizeKey(fileName)
	if key == "" {
		return nil, apperrors.NewInputError("no file selected", nil)
	}

	policy, expiration := s.NewPolicy()
	raw, err := json.Marshal(policy)
	if err != nil {
		return nil, apperrors.NewInternalError("encode upload policy", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	return &SignedUpload{
		UploadURL:  s.host,
		Key:        key,
		Expiration: expiration,
		Fields: map[string]string{
			"key":                   key,
			"policy":                encoded,
			"OSSAccessKeyId":        s.keyID,
			"signature":             Sign(s.secret, encoded),
			"x-oss-object-acl":      "private",
			"success_action_status": "200",
		},
	}, nil
}

// ObjectURL is the address of key inside the bucket.
func (s *PolicySigner) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s", s.host, key)
}

// Sign returns base64(HMAC-SHA1(secret, encodedPolicy)).
func Sign(secret, encodedPolicy string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(encodedPolicy))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
