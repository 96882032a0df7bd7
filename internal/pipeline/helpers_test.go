package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"manifests/internal/rules"
)

const sampleManifest = `
--- PÁGINA 1 ---
TRANSPORTES DEL CARIBE
MANIFIESTO DE CARGA
LOAD ID # 4471203
CONDUCTOR: JUAN  PEREZ GOMEZ
PLACA: FECHA
PLACA: TSK482
Fecha: 02.102025 Hora: 08:30
Exp. B.arranquila (ATLANTICO)
KOF 612345678 / 687654321 / 601747000 / 6012525481
REMESA No. KBQ90017
--- PÁGINA 2 ---
Fecha: 03.10.2025 Hora: 17:45
`

var fixedClock = func() time.Time { return time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC) }

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(rules.Default())
	require.NoError(t, err)
	p.Assembler().WithClock(fixedClock)
	return p
}

func manifestText(loadID, remittance, destination string, codes ...string) string {
	text := "Fecha: 02.10.2025 Hora: 08:00\n"
	if loadID != "" {
		text += "LOAD ID # " + loadID + "\n"
	}
	if remittance != "" {
		text += "REMESA No. " + remittance + "\n"
	}
	if destination != "" {
		text += "Exp. " + destination + " (X)\n"
	}
	for _, c := range codes {
		text += "KOF " + c + "\n"
	}
	return text
}
