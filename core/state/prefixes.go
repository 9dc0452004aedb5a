package state

import (
	"encoding/binary"
	"fmt"
)

var (
	rolePrefix = []byte("role:")

	oracleOwnerKey   = []byte("oracle/owner")
	oracleSourceRole = "oracle/sources"

	vaultNextIDKey    = []byte("vault/next-id")
	vaultTotalDebtKey = []byte("vault/total-debt")
)

func oraclePriceKey(asset string) []byte {
	return []byte("oracle/price/" + asset)
}

func tokenMetadataKey(symbol string) []byte {
	return []byte("token/" + symbol + "/meta")
}

func tokenSupplyKey(symbol string) []byte {
	return []byte("token/" + symbol + "/supply")
}

func tokenOwnerKey(symbol string) []byte {
	return []byte("token/" + symbol + "/owner")
}

func tokenMinterRole(symbol string) string {
	return "token/" + symbol + "/minters"
}

func tokenBalanceKey(symbol string, addr []byte) []byte {
	return []byte(fmt.Sprintf("token/%s/balance/%x", symbol, addr))
}

func vaultRecordKey(id uint64) []byte {
	return []byte(fmt.Sprintf("vault/record/%d", id))
}

func vaultOwnerIndexKey(owner []byte) []byte {
	return []byte(fmt.Sprintf("vault/owner/%x", owner))
}

func encodeVaultID(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func decodeVaultID(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("state: malformed vault id of %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
