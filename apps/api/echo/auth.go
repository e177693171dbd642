package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/user"
)

var (
	contextClaimsKey = "claims"
	contextUserKey   = "user"

	errInvalidToken = errors.New("invalid token")
)

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the identity provider; Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata,omitempty"`
}

type UserMetadata struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// GetUserClaims returns the claims of a token valid for ttl.
func GetUserClaims(usr user.User, conf *core.Config, ttl time.Duration) *Claims {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:        usr.Email,
		UserMetadata: UserMetadata{FirstName: usr.FirstName, LastName: usr.LastName},
	}
	if conf.Server.JWTAudience != "" {
		claims.Audience = jwt.ClaimStrings{conf.Server.JWTAudience}
	}
	return claims
}

// GenerateToken generates a signed HS256 JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(tokenStr, secretKey, audience string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	}, opts...)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// jwtMiddleware verifies the bearer token and stores its claims on the context.
func jwtMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, ctx echo.Context) (bool, error) {
			claims, err := parseToken(key, conf.SecretKey, conf.Server.JWTAudience)
			if err != nil {
				return false, err
			}
			ctx.Set(contextClaimsKey, claims)
			return true, nil
		},
		ErrorHandler: func(err error, ctx echo.Context) error {
			var missing *middleware.ErrKeyAuthMissing
			if errors.As(err, &missing) {
				return errMissingToken
			}
			return errInvalidJWT
		},
	})
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}

// getContextUser returns the user of the request, creating it on its first authenticated request.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}

	reqCtx := ctx.Request().Context()
	usr, err := svc.GetByID(reqCtx, claims.Subject)
	if core.IsNotFound(err) {
		usr, err = provisionUser(ctx, svc, claims)
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func provisionUser(ctx echo.Context, svc *user.Service, claims Claims) (user.User, error) {
	email := core.CleanString(claims.Email, true /* lower */)
	if email == "" {
		return user.User{}, errInvalidJWT
	}
	firstName := core.CleanString(claims.UserMetadata.FirstName)
	if firstName == "" {
		firstName = strings.SplitN(email, "@", 2)[0]
	}
	return svc.Create(ctx.Request().Context(), user.NewUser{
		ID:        claims.Subject,
		FirstName: firstName,
		LastName:  core.CleanString(claims.UserMetadata.LastName),
		Email:     email,
		Role:      user.RoleStudent,
	})
}
