package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// 検証済みPrincipalを入れるcontextキー
const CtxPrincipalKey = "principal" // model.Principal

// bearerAuth用のJWT検証ミドルウェア。
// ヘッダ無しは匿名として素通しし、可否は後段のRoleGuardに任せる。
// ヘッダが有る場合は、署名不正・期限切れは token_invalid、
// 台帳で失効済み（または未登録jti）は token_revoked で即時拒否する。
func AuthJWT(cfg config.Config, tokens repository.TokenRecordRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得。無ければ匿名で続行
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return next(c)
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("token_invalid"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("token_invalid"))
			}

			//JWTをパースして検証する。expired もここで弾かれる
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil || token == nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, errorJSON("token_invalid"))
			}

			//claimsを取り出す
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("token_invalid"))
			}

			p, err := principalFromClaims(claims)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("token_invalid"))
			}

			//jtiがあれば台帳で失効チェック。無い場合（旧形式）はチェックを飛ばす
			if p.JTI != "" {
				record, err := tokens.FindByJTI(c.Request().Context(), p.JTI)
				if err != nil {
					if errors.Is(err, repository.ErrTokenRecordNotFound) {
						return c.JSON(http.StatusUnauthorized, errorJSON("token_revoked"))
					}
					return c.JSON(http.StatusInternalServerError, errorJSON("internal"))
				}
				if record.Revoked {
					return c.JSON(http.StatusUnauthorized, errorJSON("token_revoked"))
				}
			}

			//contextへ保存
			c.Set(CtxPrincipalKey, p)

			return next(c)
		}
	}
}

// claimsをUser/Guestのどちらかに判別する
func principalFromClaims(claims jwt.MapClaims) (model.Principal, error) {
	jti, _ := claims["jti"].(string)

	role, err := parseString(claims["role"])
	if err != nil || role == "" {
		return model.Principal{}, errors.New("invalid role")
	}

	if typeTag, _ := claims["type"].(string); typeTag == "guest" {
		guestID, err := parseString(claims["guestId"])
		if err != nil || guestID == "" {
			return model.Principal{}, errors.New("invalid guestId")
		}
		return model.Principal{
			Kind:       model.PrincipalGuest,
			InvitadoID: guestID,
			Role:       model.Role(role),
			JTI:        jti,
		}, nil
	}

	userID, err := parseUserID(claims["id"])
	if err != nil || userID <= 0 {
		return model.Principal{}, errors.New("invalid id")
	}
	return model.Principal{
		Kind:   model.PrincipalUser,
		UserID: userID,
		Role:   model.Role(role),
		JTI:    jti,
	}, nil
}

// handlerからPrincipalを取り出す
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(CtxPrincipalKey).(model.Principal)
	return p, ok
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// user idをint64に変換する
func parseUserID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid id")
	}
}

func parseString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New("invalid string")
	}
	return s, nil
}
