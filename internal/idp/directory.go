// ABOUTME: Administrative user directory backed by the provider's ListUsers API
// ABOUTME: Built per request from an admin-pool federated session

package idp

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"

	"github.com/oakledger/oakledger/internal/federate"
)

// directoryAPI is the subset of the provider client the directory uses.
type directoryAPI interface {
	ListUsers(ctx context.Context, params *cognitoidentityprovider.ListUsersInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ListUsersOutput, error)
}

// User is a directory entry as the provider reports it.
type User struct {
	Username   string            `json:"username"`
	Status     string            `json:"status"`
	Enabled    bool              `json:"enabled"`
	Created    time.Time         `json:"created"`
	Attributes map[string]string `json:"attributes"`
}

// Directory lists and looks up users in the pool. Its API client carries the
// caller's admin-pool federated credentials, so the pool's own role mapping
// decides whether the calls are allowed at all.
type Directory struct {
	api        directoryAPI
	userPoolID string
}

// NewDirectory creates a Directory over an already-built API client.
func NewDirectory(api directoryAPI, userPoolID string) *Directory {
	return &Directory{api: api, userPoolID: userPoolID}
}

// NewDirectoryFromSession builds a Directory whose API client signs with the
// session's temporary credentials.
func NewDirectoryFromSession(region string, s *federate.Session, userPoolID string) *Directory {
	api := cognitoidentityprovider.New(cognitoidentityprovider.Options{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			s.AccessKeyID, s.SecretAccessKey, s.SessionToken),
	})
	return NewDirectory(api, userPoolID)
}

// ListUsers returns every user in the pool.
func (d *Directory) ListUsers(ctx context.Context) ([]User, error) {
	return d.list(ctx, "")
}

// FindByEmail returns users whose email attribute matches exactly.
func (d *Directory) FindByEmail(ctx context.Context, email string) ([]User, error) {
	return d.list(ctx, fmt.Sprintf("email = %q", email))
}

// FindByUsername returns users whose username matches exactly.
func (d *Directory) FindByUsername(ctx context.Context, username string) ([]User, error) {
	return d.list(ctx, fmt.Sprintf("username = %q", username))
}

func (d *Directory) list(ctx context.Context, filter string) ([]User, error) {
	in := &cognitoidentityprovider.ListUsersInput{
		UserPoolId: aws.String(d.userPoolID),
	}
	if filter != "" {
		in.Filter = aws.String(filter)
	}

	out, err := d.api.ListUsers(ctx, in)
	if err != nil {
		return nil, mapAPIError(err)
	}

	users := make([]User, 0, len(out.Users))
	for _, u := range out.Users {
		user := User{
			Username:   aws.ToString(u.Username),
			Status:     string(u.UserStatus),
			Enabled:    u.Enabled,
			Attributes: make(map[string]string, len(u.Attributes)),
		}
		if u.UserCreateDate != nil {
			user.Created = *u.UserCreateDate
		}
		for _, attr := range u.Attributes {
			user.Attributes[aws.ToString(attr.Name)] = aws.ToString(attr.Value)
		}
		users = append(users, user)
	}
	return users, nil
}
