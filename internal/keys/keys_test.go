package keys

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	m := NewFileManager(filepath.Join(t.TempDir(), "keys"))
	m.bits = 2048
	return m
}

func TestFileManager_GetOrCreate(t *testing.T) {
	tests := []struct {
		setup       func(t *testing.T, m *FileManager)
		name        string
		wantCreated bool
	}{
		{
			name:        "creates a pair when none exists",
			wantCreated: true,
		},
		{
			name: "reuses a valid pair",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				_, err := m.GetOrCreate("ledgersync")
				require.NoError(t, err)
			},
			wantCreated: false,
		},
		{
			name: "regenerates unparseable files",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				require.NoError(t, os.MkdirAll(m.dir, 0700))
				require.NoError(t, os.WriteFile(m.CertFile(), []byte("invalid certificate data"), 0600))
				require.NoError(t, os.WriteFile(m.KeyFile(), []byte("invalid key data"), 0600))
			},
			wantCreated: true,
		},
		{
			name: "regenerates an expired certificate",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				m.now = func() time.Time { return time.Now().Add(-2 * validFor) }
				_, err := m.GetOrCreate("ledgersync")
				require.NoError(t, err)
				m.now = time.Now
			},
			wantCreated: true,
		},
		{
			name: "regenerates when the key does not match",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				_, err := m.GetOrCreate("ledgersync")
				require.NoError(t, err)

				other := newTestManager(t)
				pair, err := other.GetOrCreate("other")
				require.NoError(t, err)
				require.NoError(t, os.WriteFile(m.KeyFile(), pair.PrivateKeyPEM, 0600))
			},
			wantCreated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			if tt.setup != nil {
				tt.setup(t, m)
			}

			pair, err := m.GetOrCreate("ledgersync")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, pair.Created)

			_, err = jwt.ParseRSAPrivateKeyFromPEM(pair.PrivateKeyPEM)
			require.NoError(t, err)
			cert, err := parseCertificate(pair.CertificatePEM)
			require.NoError(t, err)
			assert.Equal(t, cert.NotAfter, pair.NotAfter)
			assert.True(t, pair.NotAfter.After(time.Now().Add(364*24*time.Hour)))

			for _, path := range []string{m.KeyFile(), m.CertFile()} {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), path)
			}
		})
	}
}

func TestFileManager_NotAfterMatchesCertificate(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time {
		return time.Date(2026, 10, 15, 12, 37, 41, 636426413, time.FixedZone("EEST", 3*60*60))
	}

	pair, err := m.GetOrCreate("ledgersync")
	require.NoError(t, err)
	require.True(t, pair.Created)

	cert, err := parseCertificate(pair.CertificatePEM)
	require.NoError(t, err)
	assert.Equal(t, cert.NotAfter, pair.NotAfter)
	assert.Equal(t, time.Date(2027, 10, 15, 9, 37, 41, 0, time.UTC), pair.NotAfter)
}

func TestFileManager_Exists(t *testing.T) {
	m := newTestManager(t)

	exists, err := m.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.MkdirAll(m.dir, 0700))
	require.NoError(t, os.WriteFile(m.KeyFile(), []byte("key"), 0600))
	exists, err = m.Exists()
	require.NoError(t, err)
	assert.False(t, exists, "only the key exists")

	require.NoError(t, os.WriteFile(m.CertFile(), []byte("cert"), 0600))
	exists, err = m.Exists()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileManager_DirectoryIsAFile(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "keys")
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0600))

	m := NewFileManager(dir)
	_, err := m.GetOrCreate("ledgersync")
	require.Error(t, err)
}

func TestCertificateProperties(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.GetOrCreate("my-app")
	require.NoError(t, err)

	cert, err := parseCertificate(pair.CertificatePEM)
	require.NoError(t, err)

	assert.Equal(t, "my-app", cert.Subject.CommonName)
	assert.Equal(t, []string{"ledgersync"}, cert.Subject.Organization)
	assert.True(t, cert.NotBefore.Before(time.Now()))
	assert.NoError(t, cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature))
}
