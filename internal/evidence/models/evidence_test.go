package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "evidentia/pkg/domain"
)

func sampleMetadata() DeclaredMetadata {
	return DeclaredMetadata{
		DeclaredFields: manualFields(),
		Attachments: []AttachmentDescriptor{{
			Filename: "a.csv", ContentType: "text/csv", SizeBytes: 3,
			SHA256: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		}},
	}
}

func TestComputeHashesDeterministic(t *testing.T) {
	a, err := ComputeHashes(sampleMetadata(), json.RawMessage(`{"b":2,"a":[1,2]}`))
	require.NoError(t, err)
	b, err := ComputeHashes(sampleMetadata(), json.RawMessage("{ \"a\": [1, 2],\n \"b\": 2 }"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.NotNil(t, a.PayloadHash)
	assert.Len(t, a.EnvelopeHash, 64)
}

func TestComputeHashesSensitiveToEveryField(t *testing.T) {
	base, err := ComputeHashes(sampleMetadata(), json.RawMessage(`{"a":1}`))
	require.NoError(t, err)

	mutations := map[string]func(*DeclaredMetadata){
		"source_system":  func(m *DeclaredMetadata) { m.SourceSystem = "other" },
		"purpose_tags":   func(m *DeclaredMetadata) { m.PurposeTags = []string{"cbam"} },
		"retention":      func(m *DeclaredMetadata) { m.RetentionPolicy = RetentionLegalHold },
		"attachment sha": func(m *DeclaredMetadata) { m.Attachments[0].SHA256 = "00" },
		"scope target":   func(m *DeclaredMetadata) { m.ScopeTargetID = "x" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			meta := sampleMetadata()
			mutate(&meta)
			got, err := ComputeHashes(meta, json.RawMessage(`{"a":1}`))
			require.NoError(t, err)
			assert.NotEqual(t, base.MetadataHash, got.MetadataHash)
			assert.NotEqual(t, base.EnvelopeHash, got.EnvelopeHash)
			assert.Equal(t, *base.PayloadHash, *got.PayloadHash)
		})
	}

	t.Run("payload value", func(t *testing.T) {
		got, err := ComputeHashes(sampleMetadata(), json.RawMessage(`{"a":2}`))
		require.NoError(t, err)
		assert.Equal(t, base.MetadataHash, got.MetadataHash)
		assert.NotEqual(t, *base.PayloadHash, *got.PayloadHash)
		assert.NotEqual(t, base.EnvelopeHash, got.EnvelopeHash)
	})
}

func TestComputeHashesWithoutPayload(t *testing.T) {
	h, err := ComputeHashes(sampleMetadata(), nil)
	require.NoError(t, err)
	assert.Nil(t, h.PayloadHash)
	assert.NotEmpty(t, h.EnvelopeHash)
}

func TestEvidenceLifecycleAndVerify(t *testing.T) {
	ev, err := NewEvidence(SealParams{
		EvidenceID: id.NewEvidenceID(),
		TenantID:   id.NewTenantID(),
		Metadata:   sampleMetadata(),
		Payload:    json.RawMessage(`{ "z": 1, "a": 2 }`),
		CreatedBy:  "u1",
		Now:        time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, StateSealed, ev.LedgerState)
	assert.Equal(t, int64(0), ev.SequenceNumber)
	assert.Equal(t, 1, ev.AttachmentCount)
	assert.Equal(t, `{"a":2,"z":1}`, string(ev.Payload))

	report, err := ev.Verify()
	require.NoError(t, err)
	assert.True(t, report.Intact)

	ev.ApplyTransition(StateClassified)
	assert.Equal(t, int64(1), ev.SequenceNumber)

	next := id.NewEvidenceID()
	ev.ApplySupersession(next)
	assert.Equal(t, StateSuperseded, ev.LedgerState)
	assert.Equal(t, next, *ev.SupersededByEvidenceID)
	assert.Equal(t, int64(2), ev.SequenceNumber)

	ev.Payload = json.RawMessage(`{"a":3,"z":1}`)
	report, err = ev.Verify()
	require.NoError(t, err)
	assert.False(t, report.Intact)
	assert.Contains(t, report.Mismatches, "payload_hash_sha256")
}
