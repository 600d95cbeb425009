package service

// Credential is the stored password material a PasswordService verifies against.
type Credential interface {
	GetAlgo() string
	GetHash() []byte
	GetSalt() []byte
	GetParamsJSON() []byte
	GetPasswordVer() int
}

type PasswordService interface {
	Hash(password string) (hash, salt, paramsJSON []byte, algo string, ver int, err error)
	Verify(password string, cred Credential) (rehashNeeded bool, ok bool)
}
