package irc

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// scramState tracks one SCRAM-SHA-256/512 exchange.
type scramState struct {
	mechanism   string
	username    string
	password    string
	clientNonce string
	serverNonce string
	salt        string
	iterations  int
	serverKey   []byte
}

func (st *scramState) hashFunc() (func() hash.Hash, error) {
	switch st.mechanism {
	case "SCRAM-SHA-256":
		return sha256.New, nil
	case "SCRAM-SHA-512":
		return sha512.New, nil
	}
	return nil, fmt.Errorf("unsupported SCRAM mechanism %q", st.mechanism)
}

// handleSCRAMAuth advances the SCRAM exchange one step per AUTHENTICATE
// challenge.
func (b *Binding) handleSCRAMAuth(response string) {
	b.sasl.mu.Lock()
	state := b.sasl.scram
	if state == nil {
		state = &scramState{
			mechanism:   b.sasl.mechanism,
			username:    b.sasl.username,
			password:    b.sasl.password,
			clientNonce: generateClientNonce(),
		}
		b.sasl.scram = state
	}
	b.sasl.mu.Unlock()

	switch response {
	case "+":
		// client-first-message: gs2 header, username, our nonce
		clientFirst := "n,," + state.clientFirstBare()
		b.sendRaw("AUTHENTICATE " + base64.StdEncoding.EncodeToString([]byte(clientFirst)))
	case "*":
		b.abortSASL("server aborted")
	default:
		if state.serverKey != nil {
			// server-final-message: verify the signature, then signal done.
			if b.verifySCRAMServerSignature(response) {
				b.sendRaw("AUTHENTICATE +")
			} else {
				b.abortSASL("server signature mismatch")
			}
			return
		}
		b.continueSCRAM(state, response)
	}
}

func (st *scramState) clientFirstBare() string {
	return "n=" + st.username + ",r=" + st.clientNonce
}

// continueSCRAM processes the server-first-message and replies with the
// client proof.
func (b *Binding) continueSCRAM(state *scramState, response string) {
	decoded, err := base64.StdEncoding.DecodeString(response)
	if err != nil {
		b.abortSASL("undecodable server challenge")
		return
	}
	serverFirst := string(decoded)
	params := parseSCRAMParams(serverFirst)

	serverNonce, ok := params["r"]
	if !ok || !strings.HasPrefix(serverNonce, state.clientNonce) {
		b.abortSASL("invalid server nonce")
		return
	}
	state.serverNonce = serverNonce

	if state.salt, ok = params["s"]; !ok {
		b.abortSASL("missing salt")
		return
	}
	iterations, err := strconv.Atoi(params["i"])
	if err != nil || iterations <= 0 {
		b.abortSASL("invalid iteration count")
		return
	}
	state.iterations = iterations

	saltBytes, err := base64.StdEncoding.DecodeString(state.salt)
	if err != nil {
		b.abortSASL("invalid salt encoding")
		return
	}
	h, err := state.hashFunc()
	if err != nil {
		b.abortSASL(err.Error())
		return
	}

	saltedPassword := pbkdf2.Key([]byte(state.password), saltBytes, state.iterations, h().Size(), h)
	clientKey := computeHMAC(saltedPassword, "Client Key", h)
	storedKey := computeHash(clientKey, h)
	state.serverKey = computeHMAC(saltedPassword, "Server Key", h)

	channelBinding := base64.StdEncoding.EncodeToString([]byte("n,,"))
	clientFinalBare := "c=" + channelBinding + ",r=" + state.serverNonce
	authMessage := state.clientFirstBare() + "," + serverFirst + "," + clientFinalBare

	clientSignature := computeHMAC(storedKey, authMessage, h)
	clientProof := xorBytes(clientKey, clientSignature)
	if clientProof == nil {
		b.abortSASL("proof computation failed")
		return
	}

	clientFinal := clientFinalBare + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	b.sendRaw("AUTHENTICATE " + base64.StdEncoding.EncodeToString([]byte(clientFinal)))
}

// verifySCRAMServerSignature checks the v= value of the server-final
// message against our derived server key.
func (b *Binding) verifySCRAMServerSignature(response string) bool {
	b.sasl.mu.Lock()
	state := b.sasl.scram
	b.sasl.mu.Unlock()
	if state == nil || state.serverKey == nil {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(response)
	if err != nil {
		return false
	}
	serverSignature, ok := parseSCRAMParams(string(decoded))["v"]
	if !ok {
		return false
	}

	h, err := state.hashFunc()
	if err != nil {
		return false
	}
	channelBinding := base64.StdEncoding.EncodeToString([]byte("n,,"))
	serverFirst := "r=" + state.serverNonce + ",s=" + state.salt + ",i=" + strconv.Itoa(state.iterations)
	authMessage := state.clientFirstBare() + "," + serverFirst + ",c=" + channelBinding + ",r=" + state.serverNonce

	expected := base64.StdEncoding.EncodeToString(computeHMAC(state.serverKey, authMessage, h))
	return serverSignature == expected
}

func generateClientNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallbacknonce"
	}
	return base64.RawStdEncoding.EncodeToString(buf)
}

func parseSCRAMParams(message string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(message, ",") {
		if len(part) >= 3 && part[1] == '=' {
			params[part[0:1]] = part[2:]
		}
	}
	return params
}

func computeHMAC(key []byte, data string, h func() hash.Hash) []byte {
	mac := hmac.New(h, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func computeHash(data []byte, h func() hash.Hash) []byte {
	hasher := h()
	hasher.Write(data)
	return hasher.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	if len(a) != len(b) {
		return nil
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
