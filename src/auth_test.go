package aisverify

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifyStub struct {
	mu     sync.Mutex
	status int
	calls  int
	path   string
	body   verifyBody
	id     string
}

func newVerifyStub(t *testing.T, status int) (*verifyStub, *httptest.Server) {
	t.Helper()

	var stub = &verifyStub{status: status} //nolint:exhaustruct
	var srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		defer stub.mu.Unlock()

		stub.calls++
		stub.path = r.URL.Path
		stub.id = r.Header.Get("X-Request-ID")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&stub.body))

		w.WriteHeader(stub.status)
	}))
	t.Cleanup(srv.Close)

	return stub, srv
}

func (s *verifyStub) Last() (string, string, verifyBody) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.path, s.id, s.body
}

func (s *verifyStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func stubVerifier(srv *httptest.Server) *HTTPVerifier {
	return NewHTTPVerifier("http", strings.TrimPrefix(srv.URL, "http://"), "", 2*time.Second, DiscardLogger())
}

// forwardTarget is a UDP socket standing in for the downstream consumer.
func forwardTarget(t *testing.T) (net.PacketConn, *UDPForwarder) {
	t.Helper()

	var pc, err = net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })

	var fwd *UDPForwarder
	fwd, err = NewUDPForwarder(pc.LocalAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { fwd.Close() })

	return pc, fwd
}

func readDatagram(pc net.PacketConn, wait time.Duration) ([]byte, error) {
	var buf = make([]byte, 4096)
	pc.SetReadDeadline(time.Now().Add(wait)) //nolint:errcheck

	var n, _, err = pc.ReadFrom(buf)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

func storedAtoN(t *testing.T, ms *MessageStore, mmsi uint32, ts int64) *MessageRecord {
	t.Helper()

	var bits = BuildAidToNavigation(AidToNavigationFields{MMSI: mmsi, Name: "TEST MARK", Lat: 50.1, Lon: -1.2, Second: 30}) //nolint:exhaustruct
	var m, err = Decode(bits, false)
	require.NoError(t, err)

	var raw []string
	raw, err = EncodeSentences(bits, TagAIVDM, "1", "A", 30)
	require.NoError(t, err)

	var rec = &MessageRecord{ //nolint:exhaustruct
		Message:   m,
		Bits:      bits,
		Timestamp: ts,
		Raw:       raw,
	}

	var stored, _ = ms.Insert(rec)
	require.True(t, stored)

	return rec
}

func signature(t *testing.T, signer uint32) *BinaryMessage {
	t.Helper()

	var m, err = Decode(BuildSignature(8, signer, TestSignature(), false), false)
	require.NoError(t, err)

	return m.(*BinaryMessage) //nolint:forcetypeassert
}

func TestAuthenticate_Verified(t *testing.T) {
	var stub, srv = newVerifyStub(t, http.StatusOK)
	var pc, fwd = forwardTarget(t)
	var events = NewEventBus()
	var ch, unsubscribe = events.Subscribe(16)
	defer unsubscribe()

	var ms = NewMessageStore(20, EvictEpoch, []int{21}, nil)
	var target = storedAtoN(t, ms, 992351000, 1_700_000_000)

	var ac = NewAuthenticationCoordinator(ms, stubVerifier(srv), fwd, CorrelateLatest, events, DiscardLogger())

	var res = ac.Authenticate(context.Background(), signature(t, 2579999))
	require.NoError(t, res.Err)
	assert.True(t, res.Verified)
	assert.True(t, res.Forwarded)
	assert.Same(t, target, res.Target)
	assert.True(t, target.Verified)

	var path, id, body = stub.Last()
	assert.Equal(t, 1, stub.Calls())
	assert.Equal(t, "/api/signature/mmsi/verify/992351000", path)
	assert.NotEmpty(t, id)

	// Content is SHA-256 over the packed payload then the time stamp.
	var h = sha256.New()
	h.Write(target.Bits.Bytes())
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], 1_700_000_000)
	h.Write(ts[:])
	assert.Equal(t, base64.StdEncoding.EncodeToString(h.Sum(nil)), body.Content)
	assert.Equal(t, base64.StdEncoding.EncodeToString(TestSignature()), body.Signature)

	var got, err = readDatagram(pc, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, target.RawBytes(), got)
	assert.Contains(t, string(got), "\r\n")

	// Exactly one datagram.
	_, err = readDatagram(pc, 100*time.Millisecond)
	require.Error(t, err)

	var ev = <-ch
	assert.Equal(t, EventVerified, ev.Kind)
	assert.True(t, ev.Row.Verified)
	assert.Equal(t, "TEST MARK", ev.Row.Name)
}

func TestAuthenticate_Rejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var stub, srv = newVerifyStub(t, status)
			var pc, fwd = forwardTarget(t)
			var events = NewEventBus()

			var ms = NewMessageStore(20, EvictEpoch, []int{21}, nil)
			var target = storedAtoN(t, ms, 992351000, 1_700_000_000)

			var ac = NewAuthenticationCoordinator(ms, stubVerifier(srv), fwd, CorrelateLatest, events, DiscardLogger())

			var res = ac.Authenticate(context.Background(), signature(t, 2579999))
			require.ErrorIs(t, res.Err, ErrVerification)
			assert.False(t, res.Verified)
			assert.False(t, res.Forwarded)
			assert.False(t, target.Verified)
			assert.Equal(t, 1, stub.Calls(), "no retry")
			assert.Contains(t, events.LastError(), "verification error")

			var _, err = readDatagram(pc, 100*time.Millisecond)
			require.Error(t, err, "nothing forwarded")
		})
	}
}

func TestAuthenticate_ServiceUnreachable(t *testing.T) {
	var _, srv = newVerifyStub(t, http.StatusOK)
	var verifier = stubVerifier(srv)
	srv.Close()

	var pc, fwd = forwardTarget(t)
	var ms = NewMessageStore(20, EvictEpoch, []int{21}, nil)
	storedAtoN(t, ms, 992351000, 1_700_000_000)

	var ac = NewAuthenticationCoordinator(ms, verifier, fwd, CorrelateLatest, nil, DiscardLogger())

	var res = ac.Authenticate(context.Background(), signature(t, 2579999))
	require.ErrorIs(t, res.Err, ErrVerification)
	assert.False(t, res.Verified)

	var _, err = readDatagram(pc, 100*time.Millisecond)
	require.Error(t, err)
}

func TestAuthenticate_NothingStored(t *testing.T) {
	var stub, srv = newVerifyStub(t, http.StatusOK)
	var ms = NewMessageStore(20, EvictEpoch, []int{21}, nil)

	var ac = NewAuthenticationCoordinator(ms, stubVerifier(srv), nil, CorrelateLatest, nil, DiscardLogger())

	var res = ac.Authenticate(context.Background(), signature(t, 2579999))
	require.ErrorIs(t, res.Err, errNoCandidate)
	assert.Nil(t, res.Target)
	assert.Equal(t, 0, stub.Calls())
}

type fixedVerifier struct {
	ok       bool
	requests []*AuthenticationRequest
}

func (f *fixedVerifier) Verify(_ context.Context, req *AuthenticationRequest) (bool, error) {
	f.requests = append(f.requests, req)

	return f.ok, nil
}

func TestAuthenticate_FalseWithoutError(t *testing.T) {
	var ms = NewMessageStore(20, EvictEpoch, []int{21}, nil)
	storedAtoN(t, ms, 992351000, 1)

	var ac = NewAuthenticationCoordinator(ms, &fixedVerifier{ok: false}, nil, CorrelateLatest, nil, DiscardLogger()) //nolint:exhaustruct

	var res = ac.Authenticate(context.Background(), signature(t, 2579999))
	require.ErrorIs(t, res.Err, ErrVerification)
	assert.False(t, res.Verified)
}

func TestCandidate_Policies(t *testing.T) {
	var ms = NewMessageStore(20, EvictEpoch, []int{21}, nil)
	storedAtoN(t, ms, 111111111, 1)
	storedAtoN(t, ms, 222222222, 2)

	var v = &fixedVerifier{ok: true} //nolint:exhaustruct

	var latest = NewAuthenticationCoordinator(ms, v, nil, CorrelateLatest, nil, DiscardLogger())
	assert.Equal(t, uint32(222222222), latest.Candidate(111111111).Message.SourceMMSI())

	var byMMSI = NewAuthenticationCoordinator(ms, v, nil, CorrelateMMSI, nil, DiscardLogger())
	assert.Equal(t, uint32(111111111), byMMSI.Candidate(111111111).Message.SourceMMSI())
	assert.Nil(t, byMMSI.Candidate(333333333))

	var res = byMMSI.Authenticate(context.Background(), signature(t, 111111111))
	assert.True(t, res.Verified)
	require.Len(t, v.requests, 1)
	assert.Equal(t, uint32(111111111), v.requests[0].TargetMMSI)
}

func TestIsSignatureEnvelope(t *testing.T) {
	assert.True(t, IsSignatureEnvelope(&BinaryMessage{Data: NewBits(512)}))  //nolint:exhaustruct
	assert.True(t, IsSignatureEnvelope(&BinaryMessage{Data: NewBits(514)}))  //nolint:exhaustruct
	assert.False(t, IsSignatureEnvelope(&BinaryMessage{Data: NewBits(513)})) //nolint:exhaustruct
	assert.False(t, IsSignatureEnvelope(&AidToNavigation{}))                 //nolint:exhaustruct
}

func TestSignatureBytes_SkipsFraming(t *testing.T) {
	var m, err = Decode(BuildSignature(6, 1, TestSignature(), true), false)
	require.NoError(t, err)

	assert.Equal(t, TestSignature(), SignatureBytes(m.(*BinaryMessage))) //nolint:forcetypeassert
}

func TestHTTPVerifier_URL(t *testing.T) {
	var v = NewHTTPVerifier("https", "verify.example:8443", "", time.Second, DiscardLogger())
	assert.Equal(t, "https://verify.example:8443/api/signature/mmsi/verify/992351000", v.URL(992351000))

	v = NewHTTPVerifier("", "h", "/check/{mmsi}/now", time.Second, DiscardLogger())
	assert.Equal(t, "http://h/check/7/now", v.URL(7))
}
