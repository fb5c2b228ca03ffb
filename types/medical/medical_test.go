package medical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoRecords(t *testing.T) {
	donors, recipients := DemoRecords()
	require.Len(t, donors, 3)
	require.Len(t, recipients, 3)

	assert.Equal(t, "Rajesh Kumar", donors[0].PersonalInfo.Name)
	assert.Equal(t, OPos, donors[0].MedicalInfo.BloodType)
	assert.True(t, donors[0].ConsentInfo.ConsentGiven)
	assert.Equal(t, UrgencyCritical, recipients[2].MedicalInfo.UrgencyLevel)
	assert.Equal(t, 85.0, recipients[2].MedicalInfo.CPRA)

	donors[0].ID = "changed"
	again, _ := DemoRecords()
	assert.Equal(t, "donor_001", again[0].ID)
}

func TestEnums(t *testing.T) {
	assert.True(t, ABNeg.Valid())
	assert.False(t, BloodType("C+").Valid())
	assert.Len(t, OrganTypes, 6)
	assert.True(t, IsKnownState("tamil nadu"))
	assert.False(t, IsKnownState("Atlantis"))
}
