package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:	Authenticate stored messages using detached signatures.
 *
 * Description:	A signature arrives as a binary message (type 6 or 8, or
 *		a VEEDM payload) whose data is a 512 bit signature, 514
 *		with framing.  It does not say which message it signs, so
 *		a stored record is picked by the correlation policy:
 *
 *		latest	The newest stored record, whoever sent it.
 *
 *		mmsi	The newest stored record from the signer's MMSI.
 *
 *		Only that one candidate is tried.  The content that was
 *		signed is SHA-256 over the candidate's payload bits, packed
 *		into bytes, followed by its reconstructed time stamp as an
 *		8 byte big endian integer.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Signature envelope sizes, in data bits.
const (
	SignatureBits       = 512
	SignatureFramedBits = 514
)

type CorrelationPolicy string

const (
	CorrelateLatest CorrelationPolicy = "latest"
	CorrelateMMSI   CorrelationPolicy = "mmsi"
)

func ParseCorrelationPolicy(s string) (CorrelationPolicy, error) {
	switch CorrelationPolicy(s) {
	case CorrelateLatest, CorrelateMMSI:
		return CorrelationPolicy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown correlation policy %q", ErrConfig, s)
	}
}

var errNoCandidate = errors.New("no stored message to authenticate")

// AuthResult describes what happened to one signature message.
type AuthResult struct {
	Target    *MessageRecord // nil when there was no candidate.
	Verified  bool
	Forwarded bool
	Err       error
}

type AuthenticationCoordinator struct {
	store     *MessageStore
	verifier  Verifier
	forwarder Forwarder // May be nil.
	policy    CorrelationPolicy
	events    *EventBus
	logger    *log.Logger
}

func NewAuthenticationCoordinator(store *MessageStore, verifier Verifier, forwarder Forwarder, policy CorrelationPolicy, events *EventBus, logger *log.Logger) *AuthenticationCoordinator {
	return &AuthenticationCoordinator{
		store:     store,
		verifier:  verifier,
		forwarder: forwarder,
		policy:    policy,
		events:    events,
		logger:    logger,
	}
}

// IsSignatureEnvelope reports whether m carries a detached signature.
func IsSignatureEnvelope(m Message) bool {
	var b, ok = m.(*BinaryMessage)
	if !ok {
		return false
	}

	var n = b.Data.Len()

	return n == SignatureBits || n == SignatureFramedBits
}

// Candidate picks the one stored record the signature will be checked against.
func (ac *AuthenticationCoordinator) Candidate(signer uint32) *MessageRecord {
	var found *MessageRecord
	ac.store.Scan(func(r *MessageRecord) bool {
		if ac.policy == CorrelateMMSI && r.Message.SourceMMSI() != signer {
			return true
		}
		found = r

		return false
	})

	return found
}

// ContentHash is the digest the sender signed.
func ContentHash(target *MessageRecord) []byte {
	var h = sha256.New()
	h.Write(target.Bits.Bytes())

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(target.Timestamp)) //nolint:gosec // G115 epoch seconds
	h.Write(ts[:])

	return h.Sum(nil)
}

// SignatureBytes packs the signature out of the envelope, skipping the
// trailing framing bits.
func SignatureBytes(sig *BinaryMessage) []byte {
	return sig.Data.Slice(0, SignatureBits).Bytes()
}

// BuildRequest assembles the verification request for target.
func BuildRequest(target *MessageRecord, sig *BinaryMessage) *AuthenticationRequest {
	return &AuthenticationRequest{
		ID:          uuid.NewString(),
		ContentHash: ContentHash(target),
		Signature:   SignatureBytes(sig),
		TargetMMSI:  target.Message.SourceMMSI(),
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Authenticate
 *
 * Purpose:    	Handle one signature message.
 *
 * Description:	Runs synchronously on the consumer.  The verifier's own
 *		timeout bounds how long the queue waits.  Failures are
 *		logged and reported; they never stop processing.
 *
 *--------------------------------------------------------------------*/

func (ac *AuthenticationCoordinator) Authenticate(ctx context.Context, sig *BinaryMessage) AuthResult {
	var target = ac.Candidate(sig.SourceMMSI())
	if target == nil {
		ac.logger.Debug("signature with nothing to authenticate", "signer", sig.SourceMMSI(), "policy", ac.policy)

		return AuthResult{Err: errNoCandidate} //nolint:exhaustruct
	}

	var req = BuildRequest(target, sig)
	var logger = ac.logger.With("id", req.ID, "target", req.TargetMMSI, "slot", target.Slot, "signer", sig.SourceMMSI())

	var ok, err = ac.verifier.Verify(ctx, req)
	if err == nil && !ok {
		err = fmt.Errorf("%w: signature rejected", ErrVerification)
	}

	if err != nil {
		logger.Warn("verification failed", "err", err)
		ac.events.Publish(Event{ //nolint:exhaustruct
			Kind:  EventRejected,
			Slot:  target.Slot,
			Row:   NewRow(target.Message, false),
			Error: err.Error(),
		})
		ac.events.Publish(Event{Kind: EventError, Slot: target.Slot, Error: err.Error()}) //nolint:exhaustruct

		return AuthResult{Target: target, Err: err} //nolint:exhaustruct
	}

	ac.store.MarkVerified(target)
	logger.Info("message verified", "type", target.Message.MessageType())
	ac.events.Publish(Event{ //nolint:exhaustruct
		Kind: EventVerified,
		Slot: target.Slot,
		Row:  NewRow(target.Message, true),
		Time: time.Now(),
	})

	var result = AuthResult{Target: target, Verified: true} //nolint:exhaustruct

	if ac.forwarder != nil {
		if fwdErr := ac.forwarder.Forward(target.RawBytes()); fwdErr != nil {
			logger.Error("forwarding failed", "err", fwdErr)
			ac.events.Publish(Event{Kind: EventError, Slot: target.Slot, Error: fwdErr.Error()}) //nolint:exhaustruct
			result.Err = fwdErr
		} else {
			result.Forwarded = true
		}
	}

	return result
}
