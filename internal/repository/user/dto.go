package user

import (
	"encoding/json"
	"fmt"

	domuser "github.com/lodgeit-ai/ragchat/internal/domain/user"
)

// userDTO is the storage representation of an account.
type userDTO struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

func userToJSON(u domuser.User) ([]byte, error) {
	data, err := json.Marshal(userDTO{
		ID:           u.ID(),
		Username:     u.Username(),
		PasswordHash: u.PasswordHash(),
		CreatedAt:    u.CreatedAt(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	return data, nil
}

func userFromJSON(data []byte) (domuser.User, error) {
	var dto userDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return domuser.User{}, fmt.Errorf("unmarshal user: %w", err)
	}
	return domuser.Reconstruct(dto.ID, dto.Username, dto.PasswordHash, dto.CreatedAt), nil
}
