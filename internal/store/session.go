// ABOUTME: Bridges federated sessions into SDK credential providers
// ABOUTME: Keeps the credential material inside the SDK, never logged or stored

package store

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/oakledger/oakledger/internal/federate"
)

// sessionCredentials wraps a federated session's temporary credentials as a
// static provider. Sessions are short-lived and refetched by the federator on
// expiry, so no refresh logic is needed here.
func sessionCredentials(s *federate.Session) aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, s.SessionToken)
}
