package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/internal/storage"
)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "backup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seededStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	ctx := context.Background()
	s := newStore(t)

	p := &models.Patient{Name: "Luna", Species: "cat", Breed: "Siamês", Weight: 4.1, Size: "small", Sex: "female"}
	require.NoError(t, s.CreatePatient(ctx, p))
	organ := models.OrganData{OrganName: "Baço", ReportText: "homogêneo"}
	organ.Measurements.Set("espessura", models.Measurement{Value: 0.8, Unit: "cm"})
	exam := &models.Exam{PatientID: p.ID, ExamDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), OrgansData: []models.OrganData{organ}}
	require.NoError(t, s.CreateExam(ctx, exam))
	require.NoError(t, s.CreateTemplate(ctx, &models.TemplateText{Organ: "Baço", Category: "normal", Title: "Normal", Text: "homogêneo"}))
	require.NoError(t, s.CreateReferenceValue(ctx, &models.ReferenceValue{Organ: "Baço", MeasurementType: "espessura", Species: "cat", Size: "small", MinValue: 0.2, MaxValue: 1, Unit: "cm"}))
	require.NoError(t, s.SaveSettings(ctx, &models.Settings{ClinicName: "Clínica Gato Feliz"}))
	return s
}

func TestEncryptDecrypt(t *testing.T) {
	plain := []byte(`{"hello":"mundo"}`)
	sealed, err := Encrypt(plain, "segredo")
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(sealed, &env))
	assert.Equal(t, 1, env.V)
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	require.NoError(t, err)
	assert.Len(t, salt, 16)
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	require.NoError(t, err)
	assert.Len(t, iv, 12)
	assert.NotContains(t, string(sealed), "mundo")

	got, err := Decrypt(sealed, "segredo")
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	_, err = Decrypt(sealed, "errado")
	assert.ErrorIs(t, err, ErrDecrypt)
	_, err = Decrypt(sealed, "")
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	again, err := Encrypt(plain, "segredo")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "salt and iv are fresh per backup")
}

func TestDecrypt_Tampered(t *testing.T) {
	sealed, err := Encrypt([]byte("dados"), "k")
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(sealed, &env))
	raw, _ := base64.StdEncoding.DecodeString(env.Data)
	raw[0] ^= 0xff
	env.Data = base64.StdEncoding.EncodeToString(raw)
	tampered, _ := json.Marshal(env)

	_, err = Decrypt(tampered, "k")
	assert.ErrorIs(t, err, ErrDecrypt)

	env.V = 2
	future, _ := json.Marshal(env)
	_, err = Decrypt(future, "k")
	assert.Error(t, err)
}

func TestEncrypt_RequiresPassphrase(t *testing.T) {
	_, err := Encrypt([]byte("x"), "")
	assert.ErrorIs(t, err, ErrPassphraseRequired)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted([]byte(`{"v":1,"salt":"","iv":"","data":""}`)))
	assert.False(t, IsEncrypted([]byte(`{"version":1,"patients":[]}`)))
	assert.False(t, IsEncrypted([]byte(`not json`)))
}

func TestService_EncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewService(seededStore(t))

	data, err := src.Export(ctx, "senha-forte")
	require.NoError(t, err)
	require.True(t, IsEncrypted(data))

	dstStore := newStore(t)
	require.NoError(t, dstStore.CreatePatient(ctx, &models.Patient{Name: "Descartado", Species: "dog", Size: "large", Sex: "male"}))

	snap, err := NewService(dstStore).Import(ctx, data, "senha-forte")
	require.NoError(t, err)
	assert.Equal(t, storage.SnapshotVersion, snap.Version)

	counts, err := dstStore.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Patients: 1, Exams: 1, Templates: 1, ReferenceValues: 1}, counts)

	patients, err := dstStore.ListPatients(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Luna", patients[0].Name)

	exams, err := dstStore.ListExams(ctx, patients[0].ID)
	require.NoError(t, err)
	require.Len(t, exams, 1)
	m, ok := exams[0].OrgansData[0].Measurements.Get("espessura")
	require.True(t, ok)
	assert.Equal(t, 0.8, m.Value)

	settings, err := dstStore.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Clínica Gato Feliz", settings.ClinicName)
}

func TestService_WrongPassphraseLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	data, err := NewService(seededStore(t)).Export(ctx, "certa")
	require.NoError(t, err)

	dstStore := newStore(t)
	require.NoError(t, dstStore.CreatePatient(ctx, &models.Patient{Name: "Mantido", Species: "dog", Size: "large", Sex: "male"}))

	_, err = NewService(dstStore).Import(ctx, data, "errada")
	require.True(t, errors.Is(err, ErrDecrypt))

	patients, err := dstStore.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "Mantido", patients[0].Name)
}

func TestService_PlainRoundTrip(t *testing.T) {
	ctx := context.Background()
	data, err := NewService(seededStore(t)).Export(ctx, "")
	require.NoError(t, err)
	assert.False(t, IsEncrypted(data))
	assert.Contains(t, string(data), `"Luna"`)

	dstStore := newStore(t)
	_, err = NewService(dstStore).Import(ctx, data, "ignored for plain backups")
	require.NoError(t, err)
	counts, err := dstStore.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Exams)
}

func TestDecode_RejectsInvalidRecords(t *testing.T) {
	_, err := Decode([]byte(`{"version":1,"patients":[{"id":"p","name":"","species":"dog","size":"small"}]}`), "")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Decode([]byte(`{"version":1,"templates":[{"id":"t1","organ":"Baço","category":"x","text":"y"}]}`), "")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "template t1")
	_, err = Decode([]byte(`[`), "")
	assert.ErrorIs(t, err, ErrInvalid)
}
