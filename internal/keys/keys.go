// Package keys creates and loads the RSA key pair an Enable Banking
// application signs its requests with. The certificate is what gets
// uploaded when the application is registered.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// KeyFileName holds the PEM-encoded private key.
	KeyFileName = "private.key"
	// CertFileName holds the self-signed certificate.
	CertFileName = "public.crt"

	keyBits  = 4096
	validFor = 365 * 24 * time.Hour
)

// Pair is a loaded or freshly generated key pair.
type Pair struct {
	NotAfter       time.Time
	PrivateKeyPEM  []byte
	CertificatePEM []byte
	Created        bool
}

// FileManager keeps the key pair in a directory.
type FileManager struct {
	now      func() time.Time
	dir      string
	certFile string
	keyFile  string
	bits     int
}

// NewFileManager creates a FileManager for dir.
func NewFileManager(dir string) *FileManager {
	return &FileManager{
		now:      time.Now,
		dir:      dir,
		certFile: filepath.Join(dir, CertFileName),
		keyFile:  filepath.Join(dir, KeyFileName),
		bits:     keyBits,
	}
}

// KeyFile returns the private key path.
func (m *FileManager) KeyFile() string { return m.keyFile }

// CertFile returns the certificate path.
func (m *FileManager) CertFile() string { return m.certFile }

// GetOrCreate returns the existing pair when it is still valid, and
// otherwise generates a new one for the named application.
func (m *FileManager) GetOrCreate(appName string) (*Pair, error) {
	exists, err := m.Exists()
	if err != nil {
		return nil, fmt.Errorf("failed to check key files: %w", err)
	}
	if exists {
		pair, err := m.load()
		if err == nil {
			return pair, nil
		}
		if err := m.remove(); err != nil {
			return nil, fmt.Errorf("failed to remove invalid key files: %w", err)
		}
	}
	return m.generate(appName)
}

// Exists checks if both files exist.
func (m *FileManager) Exists() (bool, error) {
	for _, path := range []string{m.certFile, m.keyFile} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

func (m *FileManager) load() (*Pair, error) {
	keyPEM, err := os.ReadFile(m.keyFile)
	if err != nil {
		return nil, err
	}
	certPEM, err := os.ReadFile(m.certFile)
	if err != nil {
		return nil, err
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	cert, err := parseCertificate(certPEM)
	if err != nil {
		return nil, err
	}
	if err := m.verify(cert, key); err != nil {
		return nil, err
	}

	return &Pair{
		PrivateKeyPEM:  keyPEM,
		CertificatePEM: certPEM,
		NotAfter:       cert.NotAfter,
	}, nil
}

func (m *FileManager) generate(appName string) (*Pair, error) {
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	priv, err := rsa.GenerateKey(rand.Reader, m.bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	// Certificates keep whole seconds in UTC.
	now := m.now().UTC().Truncate(time.Second)
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   appName,
			Organization: []string{"ledgersync"},
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})

	if err := os.WriteFile(m.keyFile, keyPEM, 0600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(m.certFile, certPEM, 0600); err != nil {
		return nil, fmt.Errorf("failed to write certificate: %w", err)
	}

	return &Pair{
		PrivateKeyPEM:  keyPEM,
		CertificatePEM: certPEM,
		NotAfter:       template.NotAfter,
		Created:        true,
	}, nil
}

// verify checks the certificate is current and belongs to key.
func (m *FileManager) verify(cert *x509.Certificate, key *rsa.PrivateKey) error {
	now := m.now()
	if now.Before(cert.NotBefore) {
		return errors.New("certificate not yet valid")
	}
	if now.After(cert.NotAfter) {
		return errors.New("certificate has expired")
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		return errors.New("certificate does not match private key")
	}
	return nil
}

func (m *FileManager) remove() error {
	for _, path := range []string{m.certFile, m.keyFile} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("no certificate found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}
