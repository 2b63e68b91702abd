// Package identity resolves accounts against the Cognito user pool. Bearer
// token verification happens in the HTTP middleware; this package covers the
// directory side: who is behind an email address.
package identity

import (
	"context"
	"fmt"

	"advocase/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
)

type Directory interface {
	LookupByEmail(ctx context.Context, email string) (*types.DirectoryUser, error)
}

type CognitoDirectory struct {
	client     *cognitoidentityprovider.Client
	userPoolID string
}

func NewCognitoDirectory(client *cognitoidentityprovider.Client, userPoolID string) *CognitoDirectory {
	return &CognitoDirectory{
		client:     client,
		userPoolID: userPoolID,
	}
}

// LookupByEmail finds the account registered under an email address. No
// account means ErrUserNotFound; accounts are never created implicitly here.
func (d *CognitoDirectory) LookupByEmail(ctx context.Context, email string) (*types.DirectoryUser, error) {
	out, err := d.client.ListUsers(ctx, &cognitoidentityprovider.ListUsersInput{
		UserPoolId: aws.String(d.userPoolID),
		Filter:     aws.String(fmt.Sprintf("email = %q", email)),
		Limit:      aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query user directory: %w", err)
	}

	if len(out.Users) == 0 {
		return nil, types.ErrUserNotFound
	}

	user := out.Users[0]
	resolved := &types.DirectoryUser{
		ID:    aws.ToString(user.Username),
		Email: email,
	}

	for _, attr := range user.Attributes {
		switch aws.ToString(attr.Name) {
		case "sub":
			// The stable identifier; usernames can be aliased.
			resolved.ID = aws.ToString(attr.Value)
		case "given_name":
			resolved.GivenName = aws.ToString(attr.Value)
		case "family_name":
			resolved.FamilyName = aws.ToString(attr.Value)
		}
	}

	return resolved, nil
}
