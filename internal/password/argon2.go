// Package password はArgon2idによるパスワードハッシュの生成と照合を提供する。
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2idパラメータ。
// メモリ使用量15MiB、反復2回、並列度1。変更すると既存ハッシュの照合には
// ハッシュ文字列に埋め込まれたパラメータが使われるため互換性は保たれる。
const (
	argonMemoryKB    uint32 = 15000
	argonTime        uint32 = 2
	argonParallelism uint8  = 1
	saltLength              = 16
	keyLength        uint32 = 32
)

// ErrMalformedHash は保存済みハッシュがPHC形式として解釈できないことを示す。
var ErrMalformedHash = errors.New("malformed password hash")

// ErrMismatch はパスワードが保存済みハッシュと一致しないことを示す。
var ErrMismatch = errors.New("password does not match")

// Hash はパスワードをArgon2idでハッシュ化し、PHC形式の文字列を返す。
// ソルトは呼び出しごとにランダム生成されるため、同じパスワードでも
// 毎回異なるハッシュ文字列になる。
func Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemoryKB, argonParallelism, keyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemoryKB,
		argonTime,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify はパスワードをPHC形式の保存済みハッシュと照合する。
// 不一致の場合はErrMismatch、ハッシュが解釈できない場合はErrMalformedHashを返す。
// 比較は一定時間で行われる。
func Verify(password, encodedHash string) error {
	memory, timeCost, parallelism, salt, expected, err := decodeHash(encodedHash)
	if err != nil {
		return err
	}

	actual := argon2.IDKey([]byte(password), salt, timeCost, memory, parallelism, uint32(len(expected)))

	if subtle.ConstantTimeCompare(expected, actual) != 1 {
		return ErrMismatch
	}
	return nil
}

// decodeHash はPHC形式のハッシュ文字列からパラメータ、ソルト、ハッシュ値を取り出す。
func decodeHash(encodedHash string) (memory, timeCost uint32, parallelism uint8, salt, hash []byte, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}

	var p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &p); err != nil {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	parallelism = uint8(p)

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}

	return memory, timeCost, parallelism, salt, hash, nil
}
