/*
Package security provides cryptographic services for a Thorium cluster: a
Certificate Authority for mutual TLS between nodes, certificate lifecycle
management, and the symmetric encryption primitive used to protect the CA's
root key at rest.

# Cluster Encryption Key

All at-rest encryption is rooted in the cluster encryption key, a 32-byte
key derived from the cluster ID:

	clusterKey = SHA-256(clusterID)

The key is set once per process via SetClusterEncryptionKey and used by
Encrypt/Decrypt (AES-256-GCM, random nonce prepended to the ciphertext) to
protect the CA's root private key before it is written to storage.

# Certificate Authority

CertAuthority holds a self-signed root certificate (RSA 4096, 10-year
validity) and issues short-lived node and client certificates from it
(RSA 2048, 90-day validity). The root key is persisted encrypted via
pkg/storage's CA bucket; the root certificate is stored alongside it in
the clear.

	ca := security.NewCertAuthority(store)
	_ = security.SetClusterEncryptionKey(security.DeriveKeyFromClusterID(clusterID))
	if err := ca.LoadFromStore(); err != nil {
		_ = ca.Initialize()
		_ = ca.SaveToStore()
	}

	cert, err := ca.IssueNodeCertificate(nodeID, "node", dnsNames, ipAddresses)

Certificates are cached in memory by the ID they were issued for
(GetCachedCert), and CertNeedsRotation flags certificates within 30 days
of expiry for renewal.

# Certificate Files

certs.go handles certificate persistence to disk (for nodes that keep
their TLS material outside the cluster store, such as CLI clients) and
expiry/chain-validation helpers; pkg/transport's TLS setup does not call
them.

# gRPC TLS Integration

Node-to-node transport uses mTLS with CA-issued certificates:

	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{nodeCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    certPool,
	})
*/
package security
