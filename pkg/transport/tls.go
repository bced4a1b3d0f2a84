package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/cuemby/thorium/pkg/security"
	"google.golang.org/grpc/credentials"
)

// buildTLSCredentials issues this node's certificate from cfg.CA and
// builds matching server/client gRPC credentials. Both directions trust
// the same root and require the peer to present a certificate, since
// every node in a Thorium cluster is a symmetric peer rather than a
// client/manager pair (adapted from Warren's pkg/api/server.go /
// pkg/client/client.go mTLS setup, which split that same certificate
// pair across two distinct roles).
func buildTLSCredentials(cfg Config) (credentials.TransportCredentials, credentials.TransportCredentials, error) {
	cert, err := cfg.CA.IssueNodeCertificate(cfg.NodeID, "node", cfg.DNSNames, cfg.IPAddresses)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue node certificate: %w", err)
	}

	rootDER := cfg.CA.GetRootCACert()
	rootCert, err := x509.ParseCertificate(rootDER)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse root CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(rootCert)

	serverConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}

	clientConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}

	return credentials.NewTLS(serverConfig), credentials.NewTLS(clientConfig), nil
}
