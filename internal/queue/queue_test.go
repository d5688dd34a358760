package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/admission-seat-allocation/internal/model"
)

func sampleRecord() *model.AllocationRecord {
    return &model.AllocationRecord{
        ID:                 9,
        ApplicantID:        42,
        ProgramID:          1,
        BranchID:           7,
        Category:           "A",
        Subcategory:        4,
        EnrollmentID:       "VU2024CSE-0007",
        ConcessionBatchID:  "CB0003",
        TotalConcessionPct: decimal.NewFromInt(50),
        AdmissionFee:       decimal.NewFromInt(5000),
        TuitionFee:         decimal.NewFromInt(100000),
        ConcessionAmount:   decimal.NewFromInt(50000),
        PayableFee:         decimal.NewFromInt(50000),
        CreatedAt:          time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC),
    }
}

func TestNewAllocationCompletedEvent(t *testing.T) {
    concs := []model.ConcessionRecord{
        {ApplicantID: 42, SubID: 5, Source: model.ConcessionSourceMerit, Percentage: decimal.NewFromInt(40)},
        {ApplicantID: 42, SubID: 2, Source: model.ConcessionSourceExtra, Percentage: decimal.NewFromInt(10)},
    }
    ev := NewAllocationCompletedEvent(sampleRecord(), concs)

    assert.NotEmpty(t, ev.EventID)
    assert.Equal(t, "VU2024CSE-0007", ev.EnrollmentID)
    assert.Equal(t, "50000.00", ev.PayableFee)
    assert.Equal(t, "2024-07-01T10:00:00Z", ev.AllocatedAt)
    require.Len(t, ev.Concessions, 2)
    assert.Equal(t, "40", ev.Concessions[0].Percentage)

    other := NewAllocationCompletedEvent(sampleRecord(), nil)
    assert.NotEqual(t, ev.EventID, other.EventID)
    assert.Empty(t, other.Concessions)
}

func TestConsumerHandleAppendsLine(t *testing.T) {
    dir := t.TempDir()
    c := &Consumer{Dir: dir}
    ev := NewAllocationCompletedEvent(sampleRecord(), []model.ConcessionRecord{
        {SubID: 5, Source: model.ConcessionSourceMerit, Percentage: decimal.NewFromInt(50)},
    })
    body, err := json.Marshal(ev)
    require.NoError(t, err)

    require.NoError(t, c.handle(body))
    require.NoError(t, c.handle(body))

    data, err := os.ReadFile(filepath.Join(dir, "allocation.log"))
    require.NoError(t, err)
    lines := strings.Split(strings.TrimSpace(string(data)), "\n")
    require.Len(t, lines, 2)
    assert.Contains(t, lines[0], "enrollment_id=VU2024CSE-0007")
    assert.Contains(t, lines[0], "MERIT#5=50%")
    assert.Contains(t, lines[0], "payable=50000.00")
}

func TestConsumerHandleRejectsBadPayload(t *testing.T) {
    c := &Consumer{Dir: t.TempDir()}
    assert.Error(t, c.handle([]byte("not json")))
    assert.Error(t, c.handle([]byte(`{"applicant_id": 1}`)))
}
