/*
Package authsdk is a client for the tokenauth service.

# SDKClient vs Session

SDKClient covers the public endpoints: registration, the login flows, token
refresh, email verification and password reset. A login that ends with
tokens becomes a Session:

	client := authsdk.NewSDKClient("https://auth.example.com")

	login, err := client.Login(ctx, "user@example.com", "correct horse")
	if err != nil {
		return err
	}
	if login.Requires2FA {
		login, err = client.Verify2FA(ctx, login.UserID, code)
		if err != nil {
			return err
		}
	}

	session := client.NewSession(login)
	me, err := session.Me(ctx)

Sessions refresh the access token 30 seconds before it expires and are safe
for concurrent use.

# Errors

Every error response is returned as an *APIError. The exported values
compare by code, so errors.Is works on decoded responses:

	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// wrong email or password
	}
*/
package authsdk
