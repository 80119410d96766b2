package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentonium3/bake-tracker/internal/apperror"
	"github.com/kentonium3/bake-tracker/internal/dto"
	"github.com/kentonium3/bake-tracker/internal/model"
)

func TestCheckAvailability(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	basket := f.addAssembly("Basket")
	cookieBox := f.addFinishedUnit("Cookie box", "2.00", 3)
	f.addEdge(assemblyRef(basket.ID), model.ComponentFinishedUnit, cookieBox.ID, "2")

	result, err := f.assembly.CheckAvailability(ctx, basket.ID, 1)
	require.NoError(t, err)
	assert.True(t, result.CanAssemble)

	result, err = f.assembly.CheckAvailability(ctx, basket.ID, 2)
	require.NoError(t, err)
	assert.False(t, result.CanAssemble)

	_, err = f.assembly.CheckAvailability(ctx, basket.ID, 0)
	assert.True(t, apperror.IsValidation(err))
}

func TestAssemble(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	basket := f.addAssembly("Gift basket")
	cookieBox := f.addFinishedUnit("Cookie box", "2.00", 10)
	tissue := f.addProduct("Tissue paper", "tissue", "unit", model.ProductPackaging)
	tissueLot := f.addLot(tissue.ID, "20", "0.10", day1)

	f.addEdge(assemblyRef(basket.ID), model.ComponentFinishedUnit, cookieBox.ID, "2")
	f.addEdge(assemblyRef(basket.ID), model.ComponentPackaging, tissue.ID, "3")

	result, err := f.assembly.Assemble(ctx, dto.AssembleRequest{
		AssemblyID: basket.ID,
		Quantity:   2,
		Policy:     dto.ShortfallFail,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.QuantityAssembled)
	assert.True(t, result.Satisfied)
	// 4 boxes × 2.00 + 6 tissue × 0.10 = 8.60, per basket 4.30.
	assert.True(t, result.TotalComponentCost.Equal(d("8.60")), "got %s", result.TotalComponentCost)
	assert.True(t, result.PerUnitCost.Equal(d("4.30")), "got %s", result.PerUnitCost)

	assert.Equal(t, 6, f.finishedUnits.units[cookieBox.ID].InventoryCount)
	assert.True(t, f.lots.lots[tissueLot.ID].QuantityRemaining.Equal(d("14")))

	// The run snapshot freezes per-component cost.
	require.Len(t, f.assemblies.runs, 1)
	run := f.assemblies.runs[0]
	assert.Equal(t, result.AssemblyRunID, run.ID)
	assert.False(t, run.Shortfall)
	assert.True(t, run.TotalComponentCost.Equal(d("8.60")))
	require.Len(t, run.Items, 2)
	assert.Equal(t, model.ComponentFinishedUnit, run.Items[0].ComponentKind)
	assert.True(t, run.Items[0].Cost.Equal(d("8.00")))
	assert.Equal(t, model.ComponentPackaging, run.Items[1].ComponentKind)
	require.NotNil(t, run.Items[1].LotID)
	assert.Equal(t, tissueLot.ID, *run.Items[1].LotID)

	// Movements reference the run.
	movements, err := f.movements.ListByEntity(ctx, model.StockEntityFinishedUnit, cookieBox.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.NotNil(t, movements[0].ReferenceID)
	assert.Equal(t, run.ID, *movements[0].ReferenceID)
}

func TestAssembleExpandsSubAssemblies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	basket := f.addAssembly("Basket")
	bundle := f.addAssembly("Bundle")
	cookieBox := f.addFinishedUnit("Cookie box", "1.00", 12)

	f.addEdge(assemblyRef(basket.ID), model.ComponentSubAssembly, bundle.ID, "2")
	f.addEdge(assemblyRef(bundle.ID), model.ComponentFinishedUnit, cookieBox.ID, "3")

	result, err := f.assembly.Assemble(ctx, dto.AssembleRequest{
		AssemblyID: basket.ID,
		Quantity:   2,
		Policy:     dto.ShortfallFail,
	})
	require.NoError(t, err)

	// 2 baskets × 2 bundles × 3 boxes = 12.
	assert.Equal(t, 0, f.finishedUnits.units[cookieBox.ID].InventoryCount)
	assert.True(t, result.TotalComponentCost.Equal(d("12.00")))
}

func TestAssembleConsumesAssignedLots(t *testing.T) {
	g := newGenericFixture(t)
	ctx := context.Background()

	// The generic fixture's edge hangs off a package; build an assembly with
	// an identical generic edge instead.
	basket := g.addAssembly("Basket")
	placeholder := g.addGenericProduct("Any large box", "box-large")
	kraft := g.addProduct("Large kraft box", "box-large", "unit", model.ProductPackaging)
	lot := g.addLot(kraft.ID, "10", "1.50", day1)

	resp, err := g.composition.CreateEdge(ctx, dto.CreateEdgeRequest{
		Parent:        assemblyRef(basket.ID),
		ComponentKind: model.ComponentPackaging,
		ComponentID:   placeholder.ID,
		Quantity:      d("2"),
		IsGeneric:     true,
	})
	require.NoError(t, err)
	require.NoError(t, g.assignment.Assign(ctx, resp.ID, []dto.LotAssignment{
		{LotID: lot.ID, Quantity: d("2")},
	}))

	result, err := g.assembly.Assemble(ctx, dto.AssembleRequest{
		AssemblyID: basket.ID,
		Quantity:   3,
		Policy:     dto.ShortfallFail,
	})
	require.NoError(t, err)

	// 3 runs × 2 assigned = 6 from the chosen lot, not FIFO.
	assert.True(t, g.lots.lots[lot.ID].QuantityRemaining.Equal(d("4")))
	assert.True(t, result.TotalComponentCost.Equal(d("9.00")), "got %s", result.TotalComponentCost)
	require.Len(t, result.PackagingConsumptions, 1)
	require.NotNil(t, result.PackagingConsumptions[0].LotID)
	assert.Equal(t, lot.ID, *result.PackagingConsumptions[0].LotID)
}

func TestAssembleRejectsUnassignedGeneric(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	basket := f.addAssembly("Basket")
	placeholder := f.addGenericProduct("Any medium box", "box-medium")

	_, err := f.composition.CreateEdge(ctx, dto.CreateEdgeRequest{
		Parent:        assemblyRef(basket.ID),
		ComponentKind: model.ComponentPackaging,
		ComponentID:   placeholder.ID,
		Quantity:      d("1"),
		IsGeneric:     true,
	})
	require.NoError(t, err)

	// Rejected under both policies; nothing recorded.
	_, err = f.assembly.Assemble(ctx, dto.AssembleRequest{
		AssemblyID: basket.ID, Quantity: 1, Policy: dto.ShortfallFail,
	})
	assert.True(t, apperror.IsInvalidAssignment(err))
	_, err = f.assembly.Assemble(ctx, dto.AssembleRequest{
		AssemblyID: basket.ID, Quantity: 1, Policy: dto.ShortfallPartial,
	})
	assert.True(t, apperror.IsInvalidAssignment(err))
	assert.Empty(t, f.assemblies.runs)
}

func TestAssembleFailPolicy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	basket := f.addAssembly("Basket")
	cookieBox := f.addFinishedUnit("Cookie box", "2.00", 3)
	f.addEdge(assemblyRef(basket.ID), model.ComponentFinishedUnit, cookieBox.ID, "2")

	_, err := f.assembly.Assemble(ctx, dto.AssembleRequest{
		AssemblyID: basket.ID,
		Quantity:   2,
		Policy:     dto.ShortfallFail,
	})
	require.ErrorIs(t, err, ErrShortfall)
	assert.Equal(t, 3, f.finishedUnits.units[cookieBox.ID].InventoryCount)
	assert.Empty(t, f.assemblies.runs)
}

func TestAssemblePartialPolicy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	basket := f.addAssembly("Basket")
	cookieBox := f.addFinishedUnit("Cookie box", "2.00", 3)
	f.addEdge(assemblyRef(basket.ID), model.ComponentFinishedUnit, cookieBox.ID, "2")

	result, err := f.assembly.Assemble(ctx, dto.AssembleRequest{
		AssemblyID: basket.ID,
		Quantity:   2,
		Policy:     dto.ShortfallPartial,
	})
	require.NoError(t, err)

	assert.False(t, result.Satisfied)
	assert.Equal(t, 0, f.finishedUnits.units[cookieBox.ID].InventoryCount)
	require.Len(t, result.FinishedUnitConsumptions, 1)
	assert.True(t, result.FinishedUnitConsumptions[0].Quantity.Equal(d("3")))
	assert.True(t, result.FinishedUnitConsumptions[0].Shortfall.Equal(d("1")))

	require.Len(t, f.assemblies.runs, 1)
	assert.True(t, f.assemblies.runs[0].Shortfall)
}

func TestAssembleConsumesMaterialUnits(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ribbon := &model.Material{Name: "Ribbon", BaseUnit: "cm"}
	require.NoError(t, f.materials.CreateMaterial(ctx, ribbon))
	bow := &model.MaterialUnit{MaterialID: ribbon.ID, Name: "Bow", QuantityPerUnit: d("50")}
	require.NoError(t, f.materials.CreateUnit(ctx, bow))

	red := f.addProduct("Red ribbon", "ribbon-red", "cm", model.ProductPackaging)
	red.MaterialID = &ribbon.ID
	ribbonLot := f.addLot(red.ID, "500", "0.02", day1)

	basket := f.addAssembly("Basket")
	f.addEdge(assemblyRef(basket.ID), model.ComponentMaterialUnit, bow.ID, "2")

	result, err := f.assembly.Assemble(ctx, dto.AssembleRequest{
		AssemblyID: basket.ID,
		Quantity:   3,
		Policy:     dto.ShortfallFail,
	})
	require.NoError(t, err)

	// 3 × 2 bows × 50 cm = 300 cm of ribbon at 0.02/cm.
	assert.True(t, f.lots.lots[ribbonLot.ID].QuantityRemaining.Equal(d("200")))
	assert.True(t, result.TotalComponentCost.Equal(d("6.00")), "got %s", result.TotalComponentCost)
}
