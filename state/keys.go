package state

var (
	accountPrefix = []byte("rewards/account/")
	orderPrefix   = []byte("rewards/order/")
	vaultPrefix   = []byte("rewards/vault/")
)

func accountKey(credentialKey string) []byte {
	buf := make([]byte, len(accountPrefix)+len(credentialKey))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], credentialKey)
	return buf
}

func orderKey(compositeKey string) []byte {
	buf := make([]byte, len(orderPrefix)+len(compositeKey))
	copy(buf, orderPrefix)
	copy(buf[len(orderPrefix):], compositeKey)
	return buf
}

func vaultKey(token string) []byte {
	buf := make([]byte, len(vaultPrefix)+len(token))
	copy(buf, vaultPrefix)
	copy(buf[len(vaultPrefix):], token)
	return buf
}
