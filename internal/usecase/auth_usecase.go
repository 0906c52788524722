package usecase

import (
	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/repository"

	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//401 署名不正・形式不正・期限切れ
	ErrTokenInvalid = errors.New("token invalid")
	//401 失効済み、または台帳に載っていないjti
	ErrTokenRevoked = errors.New("token revoked")
	//403 権限
	ErrForbidden = errors.New("forbidden")
	//409 email重複など
	ErrConflict = errors.New("conflict")
	//500
	ErrInternal = errors.New("internal error")
)

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, email string, password string) error
	ValidateLogin(ctx context.Context, email string, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string) error
}

type UserDTO struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

type AuthRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// ゲストからの昇格時に付く。昇格印を付けるだけでtokenは引き継がない
	InvitadoID string `json:"invitado_id,omitempty"`
}

type AuthRegisterResponse struct {
	User UserDTO `json:"user"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User         UserDTO `json:"user"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    int     `json:"expires_in"`
}

type InvitadoResponse struct {
	InvitadoID  string `json:"invitado_id"`
	AccessToken string `json:"access_token"`
}

type AuthRefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthRefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type LogoutAllResponse struct {
	Message      string `json:"message"`
	RevokedCount int64  `json:"revoked_count"`
}

type AuthUsecase struct {
	cfg       config.Config
	users     repository.UserRepository
	invitados repository.InvitadoRepository
	tokens    repository.TokenRecordRepository
	tx        repository.TransactionManager
	validator AuthValidator
}

func NewAuthUsecase(
	cfg config.Config,
	users repository.UserRepository,
	invitados repository.InvitadoRepository,
	tokens repository.TokenRecordRepository,
	tx repository.TransactionManager,
	validator AuthValidator,
) *AuthUsecase {
	return &AuthUsecase{
		cfg:       cfg,
		users:     users,
		invitados: invitados,
		tokens:    tokens,
		tx:        tx,
		validator: validator,
	}
}

// ゲスト発行。本人レコードとtoken台帳を同一Txで作り、commit後にtokenを返す
// expクレームは付けない（失効は台帳のrevokedだけで制御する）
func (u *AuthUsecase) CreateInvitado(ctx context.Context) (*InvitadoResponse, error) {
	invitadoID := uuid.NewString()
	jti := uuid.NewString()
	now := time.Now()

	signed, err := u.signGuestToken(invitadoID, jti, now)
	if err != nil {
		return nil, ErrInternal
	}

	err = u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		if err := r.Invitados().Create(ctx, &model.Invitado{ID: invitadoID}); err != nil {
			return err
		}
		return r.TokenRecords().Create(ctx, &model.TokenRecord{
			JTI:        jti,
			InvitadoID: &invitadoID,
			TokenType:  model.TokenTypeAccess,
			ExpiresAt:  nil,
		})
	})
	if err != nil {
		// insertに失敗したtokenは絶対に返さない
		return nil, ErrInternal
	}

	return &InvitadoResponse{
		InvitadoID:  invitadoID,
		AccessToken: signed,
	}, nil
}

func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest) (*AuthRegisterResponse, error) {
	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, req.Email, req.Password); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrConflict
		}
		return nil, ErrValidation
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrInternal
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: string(pwHash),
		Role:         model.RoleUsuario,
		IsActive:     true,
	}

	if err := u.users.Create(ctx, user); err != nil {
		return nil, ErrConflict
	}

	//ゲストからの昇格印。失敗しても登録自体は成功扱い（ログのみ）
	if req.InvitadoID != "" {
		if err := u.invitados.MarkUpgraded(ctx, req.InvitadoID); err != nil {
			log.Warn().
				Err(err).
				Str("invitado_id", req.InvitadoID).
				Msg("mark invitado upgraded failed")
		}
	}

	userDTO := toUserDTO(user)
	return &AuthRegisterResponse{User: userDTO}, nil
}

func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest) (*AuthLoginResponse, error) {
	//入力検証
	if err := u.validator.ValidateLogin(ctx, req.Email, req.Password); err != nil {
		return nil, ErrValidation
	}

	//ユーザー取得
	user, err := u.users.FindByEmail(ctx, req.Email)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return nil, ErrForbidden
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrUnauthorized
	}

	now := time.Now()
	accessJTI := uuid.NewString()
	refreshJTI := uuid.NewString()
	accessExp := now.Add(u.cfg.AccessTokenTTL)
	refreshExp := now.Add(u.cfg.RefreshTokenTTL)

	accessToken, err := u.signUserToken(user.ID, string(user.Role), accessJTI, now, accessExp)
	if err != nil {
		return nil, ErrInternal
	}
	refreshToken, err := u.signUserToken(user.ID, string(user.Role), refreshJTI, now, refreshExp)
	if err != nil {
		return nil, ErrInternal
	}

	//access+refreshの台帳2件は同一Tx。片方だけ残る状態を作らない
	err = u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		if err := r.TokenRecords().Create(ctx, &model.TokenRecord{
			JTI:       accessJTI,
			UserID:    &user.ID,
			TokenType: model.TokenTypeAccess,
			ExpiresAt: &accessExp,
		}); err != nil {
			return err
		}
		return r.TokenRecords().Create(ctx, &model.TokenRecord{
			JTI:       refreshJTI,
			UserID:    &user.ID,
			TokenType: model.TokenTypeRefresh,
			ExpiresAt: &refreshExp,
		})
	})
	if err != nil {
		return nil, ErrInternal
	}

	//last_login更新は成否を問わない
	user.LastLoginAt = &now
	_ = u.users.Update(ctx, user)

	return &AuthLoginResponse{
		User:         toUserDTO(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(u.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// refresh tokenから新しいaccess tokenを1枚発行する
// refresh token自体は回転も失効もしない
func (u *AuthUsecase) Refresh(ctx context.Context, refreshTokenPlain string) (*AuthRefreshResponse, error) {
	if err := u.validator.ValidateRefresh(ctx, refreshTokenPlain); err != nil {
		return nil, ErrValidation
	}

	//署名検証。期限切れもここで弾かれる
	claims, err := u.parseClaims(refreshTokenPlain)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	jtiClaim, ok := claims["jti"].(string)
	if !ok || jtiClaim == "" {
		return nil, ErrTokenInvalid
	}

	record, err := u.tokens.FindByJTI(ctx, jtiClaim)
	if err != nil {
		if errors.Is(err, repository.ErrTokenRecordNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, ErrInternal
	}
	if record.TokenType != model.TokenTypeRefresh {
		return nil, ErrTokenInvalid
	}
	if record.Revoked {
		return nil, ErrTokenRevoked
	}

	role, _ := claims["role"].(string)
	if role == "" {
		return nil, ErrTokenInvalid
	}

	now := time.Now()
	newJTI := uuid.NewString()
	newExp := now.Add(u.cfg.AccessTokenTTL)

	//所有者は台帳側を正とする
	var signed string
	newRecord := &model.TokenRecord{
		JTI:       newJTI,
		TokenType: model.TokenTypeAccess,
		ExpiresAt: &newExp,
	}

	switch {
	case record.UserID != nil:
		signed, err = u.signUserToken(*record.UserID, role, newJTI, now, newExp)
		newRecord.UserID = record.UserID
	case record.InvitadoID != nil:
		signed, err = u.signGuestAccessWithExpiry(*record.InvitadoID, newJTI, now, newExp)
		newRecord.InvitadoID = record.InvitadoID
	default:
		return nil, ErrInternal
	}
	if err != nil {
		return nil, ErrInternal
	}

	if err := u.tokens.Create(ctx, newRecord); err != nil {
		return nil, ErrInternal
	}

	return &AuthRefreshResponse{
		AccessToken: signed,
		ExpiresIn:   int(u.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// 提示tokenのjtiを失効させる。二重logoutは成功扱い（冪等）
func (u *AuthUsecase) Logout(ctx context.Context, p model.Principal) (*SuccessResponse, error) {
	if p.JTI == "" {
		return nil, ErrTokenInvalid
	}

	if _, err := u.tokens.Revoke(ctx, p.JTI, time.Now()); err != nil {
		return nil, ErrInternal
	}

	return &SuccessResponse{Message: "logout success"}, nil
}

// 所有者の未失効tokenを全部失効させる。呼び出しに使ったtoken自身も含む
func (u *AuthUsecase) LogoutAll(ctx context.Context, p model.Principal) (*LogoutAllResponse, error) {
	now := time.Now()

	var count int64
	var err error

	switch {
	case p.IsUser():
		count, err = u.tokens.RevokeAllByUserID(ctx, p.UserID, now)
	case p.IsGuest():
		count, err = u.tokens.RevokeAllByInvitadoID(ctx, p.InvitadoID, now)
	default:
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, ErrInternal
	}

	return &LogoutAllResponse{
		Message:      "logout all success",
		RevokedCount: count,
	}, nil
}

// 管理者による強制logout。対象ユーザーの未失効tokenを全部失効させる
func (u *AuthUsecase) ForceLogout(ctx context.Context, targetUserID int64) (*LogoutAllResponse, error) {
	if targetUserID <= 0 {
		return nil, ErrValidation
	}

	if _, err := u.users.FindByID(ctx, targetUserID); err != nil {
		return nil, ErrValidation
	}

	count, err := u.tokens.RevokeAllByUserID(ctx, targetUserID, time.Now())
	if err != nil {
		return nil, ErrInternal
	}

	return &LogoutAllResponse{
		Message:      "force logout success",
		RevokedCount: count,
	}, nil
}

func (u *AuthUsecase) Me(ctx context.Context, p model.Principal) (*UserDTO, error) {
	if p.IsGuest() {
		return &UserDTO{
			Role:     string(model.RoleInvitado),
			IsActive: true,
		}, nil
	}

	user, err := u.users.FindByID(ctx, p.UserID)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, ErrForbidden
	}

	dto := toUserDTO(user)
	return &dto, nil
}

// ゲストtoken署名。exp無し
func (u *AuthUsecase) signGuestToken(invitadoID string, jti string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"guestId": invitadoID,
		"role":    string(model.RoleInvitado),
		"type":    "guest",
		"jti":     jti,
		"iat":     now.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(u.cfg.JWTSecret))
}

// refresh経由で発行するゲストaccess token。こちらは期限付き
func (u *AuthUsecase) signGuestAccessWithExpiry(invitadoID string, jti string, now time.Time, exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"guestId": invitadoID,
		"role":    string(model.RoleInvitado),
		"type":    "guest",
		"jti":     jti,
		"iat":     now.Unix(),
		"exp":     exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(u.cfg.JWTSecret))
}

// ユーザーtoken署名（access/refresh共通の形）
func (u *AuthUsecase) signUserToken(userID int64, role string, jti string, now time.Time, exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"id":   userID,
		"role": role,
		"jti":  jti,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(u.cfg.JWTSecret))
}

func (u *AuthUsecase) parseClaims(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(u.cfg.JWTSecret), nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:       u.ID,
		Email:    u.Email,
		Role:     string(u.Role),
		IsActive: u.IsActive,
	}
}
