package security

import (
	"crypto/x509"
	"net"
	"os"
	"testing"
	"time"

	"github.com/cuemby/thorium/pkg/storage"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	key := DeriveKeyFromClusterID("test-cluster")
	require.NoError(t, SetClusterEncryptionKey(key))

	tmpDir, err := os.MkdirTemp("", "thorium-ca-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := storage.NewBoltStore(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestInitializeCA(t *testing.T) {
	store := newTestStore(t)
	ca := NewCertAuthority(store)
	require.NoError(t, ca.Initialize())

	require.True(t, ca.IsInitialized())
	require.NotNil(t, ca.rootCert)
	require.NotNil(t, ca.rootKey)
	require.True(t, ca.rootCert.IsCA)

	expectedExpiry := time.Now().Add(rootCAValidity)
	require.False(t, ca.rootCert.NotAfter.Before(expectedExpiry.Add(-time.Hour)))
}

func TestSaveLoadCA(t *testing.T) {
	store := newTestStore(t)

	ca1 := NewCertAuthority(store)
	require.NoError(t, ca1.Initialize())
	require.NoError(t, ca1.SaveToStore())

	ca2 := NewCertAuthority(store)
	require.NoError(t, ca2.LoadFromStore())

	require.True(t, ca2.IsInitialized())
	require.True(t, ca1.rootCert.Equal(ca2.rootCert))
	require.Equal(t, 0, ca1.rootKey.N.Cmp(ca2.rootKey.N))
}

func TestIssueNodeCertificate(t *testing.T) {
	store := newTestStore(t)
	ca := NewCertAuthority(store)
	require.NoError(t, ca.Initialize())

	tests := []struct {
		name   string
		nodeID string
		role   string
	}{
		{"first node", "node1", "node"},
		{"second node", "node2", "node"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := ca.IssueNodeCertificate(tt.nodeID, tt.role, []string{}, []net.IP{})
			require.NoError(t, err)
			require.NotNil(t, cert.Leaf)

			expectedCN := tt.role + "-" + tt.nodeID
			require.Equal(t, expectedCN, cert.Leaf.Subject.CommonName)

			expectedExpiry := time.Now().Add(nodeCertValidity)
			require.False(t, cert.Leaf.NotAfter.Before(expectedExpiry.Add(-time.Hour)))

			require.NotZero(t, cert.Leaf.KeyUsage&x509.KeyUsageDigitalSignature)

			hasClientAuth, hasServerAuth := false, false
			for _, usage := range cert.Leaf.ExtKeyUsage {
				if usage == x509.ExtKeyUsageClientAuth {
					hasClientAuth = true
				}
				if usage == x509.ExtKeyUsageServerAuth {
					hasServerAuth = true
				}
			}
			require.True(t, hasClientAuth)
			require.True(t, hasServerAuth)
		})
	}
}

func TestIssueClientCertificate(t *testing.T) {
	store := newTestStore(t)
	ca := NewCertAuthority(store)
	require.NoError(t, ca.Initialize())

	clientID := "user@machine"
	cert, err := ca.IssueClientCertificate(clientID)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	require.Equal(t, "cli-"+clientID, cert.Leaf.Subject.CommonName)

	hasClientAuth, hasServerAuth := false, false
	for _, usage := range cert.Leaf.ExtKeyUsage {
		if usage == x509.ExtKeyUsageClientAuth {
			hasClientAuth = true
		}
		if usage == x509.ExtKeyUsageServerAuth {
			hasServerAuth = true
		}
	}
	require.True(t, hasClientAuth)
	require.False(t, hasServerAuth)
}

func TestVerifyCertificate(t *testing.T) {
	store := newTestStore(t)
	ca := NewCertAuthority(store)
	require.NoError(t, ca.Initialize())

	cert, err := ca.IssueNodeCertificate("test-node", "node", []string{}, []net.IP{})
	require.NoError(t, err)
	require.NoError(t, ca.VerifyCertificate(cert.Leaf))
}

func TestGetRootCACert(t *testing.T) {
	store := newTestStore(t)
	ca := NewCertAuthority(store)
	require.NoError(t, ca.Initialize())

	rootCertDER := ca.GetRootCACert()
	require.NotNil(t, rootCertDER)

	parsedCert, err := x509.ParseCertificate(rootCertDER)
	require.NoError(t, err)
	require.True(t, parsedCert.Equal(ca.rootCert))
}

func TestCertCache(t *testing.T) {
	store := newTestStore(t)
	ca := NewCertAuthority(store)
	require.NoError(t, ca.Initialize())

	nodeID := "test-node"
	_, err := ca.IssueNodeCertificate(nodeID, "node", []string{}, []net.IP{})
	require.NoError(t, err)

	cached, exists := ca.GetCachedCert(nodeID)
	require.True(t, exists)
	require.NotNil(t, cached)
	require.Equal(t, "node-"+nodeID, cached.Cert.Subject.CommonName)
}
