// ABOUTME: Identity-provider account client for signup, confirmation and sign-in
// ABOUTME: Attaches the required secret hash to every provider write operation

package idp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/oakledger/oakledger/internal/auth"
)

// accountAPI is the subset of the provider client the account flows use.
// Implemented by *cognitoidentityprovider.Client.
type accountAPI interface {
	SignUp(ctx context.Context, params *cognitoidentityprovider.SignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cognitoidentityprovider.ConfirmSignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
	GlobalSignOut(ctx context.Context, params *cognitoidentityprovider.GlobalSignOutInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GlobalSignOutOutput, error)
}

// Tokens is the bundle a successful sign-in returns.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int32  `json:"expires_in"`
}

// Client drives the provider's account flows for one app client. Every
// write operation carries the computed secret hash.
type Client struct {
	api      accountAPI
	hasher   *auth.SecretHasher
	clientID string
	logger   *slog.Logger
}

// NewClient creates a Client. The underlying API calls are authorized by the
// secret hash, not by ambient cloud credentials.
func NewClient(api accountAPI, clientID string, hasher *auth.SecretHasher) *Client {
	return &Client{
		api:      api,
		hasher:   hasher,
		clientID: clientID,
		logger:   slog.Default().With("component", "idp"),
	}
}

// NewProviderAPI builds the real provider client for the region. Account
// flows are client-secret authorized, so the SDK signs nothing.
func NewProviderAPI(region string) *cognitoidentityprovider.Client {
	return cognitoidentityprovider.New(cognitoidentityprovider.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	})
}

// SignUp registers a new user with the provider.
func (c *Client) SignUp(ctx context.Context, username, password, email string) error {
	secretHash, err := c.hasher.SecretHash(username)
	if err != nil {
		return err
	}

	_, err = c.api.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId:   aws.String(c.clientID),
		Username:   aws.String(username),
		Password:   aws.String(password),
		SecretHash: aws.String(secretHash),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
			{Name: aws.String("name"), Value: aws.String(username)},
		},
	})
	if err != nil {
		return mapAPIError(err)
	}

	c.logger.Info("user signed up", "username", username)
	return nil
}

// Confirm completes sign-up with the emailed confirmation code.
func (c *Client) Confirm(ctx context.Context, username, code string) error {
	secretHash, err := c.hasher.SecretHash(username)
	if err != nil {
		return err
	}

	_, err = c.api.ConfirmSignUp(ctx, &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		SecretHash:       aws.String(secretHash),
	})
	if err != nil {
		return mapAPIError(err)
	}

	c.logger.Info("user confirmed", "username", username)
	return nil
}

// SignIn performs the password auth flow and returns the token bundle.
func (c *Client) SignIn(ctx context.Context, username, password string) (*Tokens, error) {
	secretHash, err := c.hasher.SecretHash(username)
	if err != nil {
		return nil, err
	}

	out, err := c.api.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(c.clientID),
		AuthParameters: map[string]string{
			"USERNAME":    username,
			"PASSWORD":    password,
			"SECRET_HASH": secretHash,
		},
	})
	if err != nil {
		return nil, mapAPIError(err)
	}

	result := out.AuthenticationResult
	if result == nil || result.AccessToken == nil || result.IdToken == nil {
		return nil, fmt.Errorf("%w: incomplete authentication result", ErrProvider)
	}

	return &Tokens{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		TokenType:    aws.ToString(result.TokenType),
		ExpiresIn:    result.ExpiresIn,
	}, nil
}

// SignOut revokes every token issued to the bearer of the access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.api.GlobalSignOut(ctx, &cognitoidentityprovider.GlobalSignOutInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		return mapAPIError(err)
	}
	return nil
}
