package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/cache"
	"github.com/kentonium3/bake-tracker/internal/model"
	"github.com/kentonium3/bake-tracker/internal/unit"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ── In-memory repository stubs ───────────────────────────────────────────────

type stubProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (r *stubProductRepo) Create(_ context.Context, p *model.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.products[p.ID] = p
	return nil
}

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *stubProductRepo) ListByFamily(_ context.Context, family string) ([]model.Product, error) {
	var result []model.Product
	for _, p := range r.products {
		if p.Family == family && p.Active {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (r *stubProductRepo) Update(_ context.Context, p *model.Product) error {
	r.products[p.ID] = p
	return nil
}

func (r *stubProductRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	p, ok := r.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Active = false
	return nil
}

func (r *stubProductRepo) DB() *gorm.DB { return nil }

type stubMaterialRepo struct {
	materials map[uuid.UUID]*model.Material
	units     map[uuid.UUID]*model.MaterialUnit
	products  *stubProductRepo
}

func newStubMaterialRepo(products *stubProductRepo) *stubMaterialRepo {
	return &stubMaterialRepo{
		materials: make(map[uuid.UUID]*model.Material),
		units:     make(map[uuid.UUID]*model.MaterialUnit),
		products:  products,
	}
}

func (r *stubMaterialRepo) CreateMaterial(_ context.Context, m *model.Material) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.materials[m.ID] = m
	return nil
}

func (r *stubMaterialRepo) FindMaterial(_ context.Context, id uuid.UUID) (*model.Material, error) {
	m, ok := r.materials[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

func (r *stubMaterialRepo) CreateUnit(_ context.Context, u *model.MaterialUnit) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.units[u.ID] = u
	return nil
}

func (r *stubMaterialRepo) FindUnit(_ context.Context, id uuid.UUID) (*model.MaterialUnit, error) {
	u, ok := r.units[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if u.Material == nil {
		u.Material = r.materials[u.MaterialID]
	}
	return u, nil
}

func (r *stubMaterialRepo) ListProducts(_ context.Context, materialID uuid.UUID) ([]model.Product, error) {
	var result []model.Product
	for _, p := range r.products.products {
		if p.MaterialID != nil && *p.MaterialID == materialID && p.Active {
			result = append(result, *p)
		}
	}
	return result, nil
}

type stubLotRepo struct {
	lots     map[uuid.UUID]*model.Lot
	products *stubProductRepo
}

func newStubLotRepo(products *stubProductRepo) *stubLotRepo {
	return &stubLotRepo{lots: make(map[uuid.UUID]*model.Lot), products: products}
}

func (r *stubLotRepo) Create(_ context.Context, _ *gorm.DB, lot *model.Lot) error {
	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}
	lot.Product = r.products.products[lot.ProductID]
	r.lots[lot.ID] = lot
	return nil
}

func (r *stubLotRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Lot, error) {
	lot, ok := r.lots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	lot.Product = r.products.products[lot.ProductID]
	return lot, nil
}

func (r *stubLotRepo) ListByProduct(_ context.Context, productID uuid.UUID) ([]model.Lot, error) {
	var result []model.Lot
	for _, lot := range r.lots {
		if lot.ProductID == productID {
			result = append(result, *lot)
		}
	}
	return result, nil
}

func (r *stubLotRepo) live(match func(p *model.Product) bool) []model.Lot {
	var result []model.Lot
	for _, lot := range r.lots {
		p := r.products.products[lot.ProductID]
		if p == nil || !p.Active || !match(p) {
			continue
		}
		if lot.QuantityRemaining.LessThanOrEqual(d("0.001")) {
			continue
		}
		copied := *lot
		copied.Product = p
		result = append(result, copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].PurchaseDate.Equal(result[j].PurchaseDate) {
			return result[i].PurchaseDate.Before(result[j].PurchaseDate)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result
}

func (r *stubLotRepo) FindLiveByFamily(_ context.Context, _ *gorm.DB, family string) ([]model.Lot, error) {
	return r.live(func(p *model.Product) bool { return p.Family == family }), nil
}

func (r *stubLotRepo) FindLiveByMaterial(_ context.Context, _ *gorm.DB, materialID uuid.UUID) ([]model.Lot, error) {
	return r.live(func(p *model.Product) bool {
		return p.MaterialID != nil && *p.MaterialID == materialID
	}), nil
}

func (r *stubLotRepo) DecrementTx(_ *gorm.DB, id uuid.UUID, qty decimal.Decimal) error {
	lot, ok := r.lots[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if lot.QuantityRemaining.LessThan(qty) {
		return gorm.ErrInvalidData
	}
	lot.QuantityRemaining = lot.QuantityRemaining.Sub(qty)
	return nil
}

func (r *stubLotRepo) DB() *gorm.DB { return nil }

type stubMovementRepo struct {
	movements []model.StockMovement
}

func newStubMovementRepo() *stubMovementRepo { return &stubMovementRepo{} }

func (r *stubMovementRepo) CreateTx(_ *gorm.DB, m *model.StockMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r *stubMovementRepo) ListByEntity(_ context.Context, kind model.StockEntityKind, entityID uuid.UUID) ([]model.StockMovement, error) {
	var result []model.StockMovement
	for _, m := range r.movements {
		if m.EntityKind == kind && m.EntityID == entityID {
			result = append(result, m)
		}
	}
	return result, nil
}

type stubCompositionRepo struct {
	edges       map[uuid.UUID]*model.Composition
	order       []uuid.UUID
	assignments map[uuid.UUID][]model.CompositionAssignment
	lots        *stubLotRepo
}

func newStubCompositionRepo(lots *stubLotRepo) *stubCompositionRepo {
	return &stubCompositionRepo{
		edges:       make(map[uuid.UUID]*model.Composition),
		assignments: make(map[uuid.UUID][]model.CompositionAssignment),
		lots:        lots,
	}
}

func (r *stubCompositionRepo) withAssignments(edge model.Composition) model.Composition {
	edge.Assignments = append([]model.CompositionAssignment(nil), r.assignments[edge.ID]...)
	return edge
}

func (r *stubCompositionRepo) Create(_ context.Context, _ *gorm.DB, c *model.Composition) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.edges[c.ID] = c
	r.order = append(r.order, c.ID)
	return nil
}

func (r *stubCompositionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Composition, error) {
	c, ok := r.edges[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := r.withAssignments(*c)
	return &copied, nil
}

func (r *stubCompositionRepo) Update(_ context.Context, _ *gorm.DB, c *model.Composition) error {
	if _, ok := r.edges[c.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *c
	stored.Assignments = nil
	r.edges[c.ID] = &stored
	return nil
}

func (r *stubCompositionRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	delete(r.edges, id)
	delete(r.assignments, id)
	for i, known := range r.order {
		if known == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *stubCompositionRepo) ListByParent(_ context.Context, parent model.ParentRef) ([]model.Composition, error) {
	var result []model.Composition
	for _, id := range r.order {
		c := r.edges[id]
		if c.ParentKind == parent.Kind && c.ParentID == parent.ID {
			result = append(result, r.withAssignments(*c))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SortOrder < result[j].SortOrder
	})
	return result, nil
}

func (r *stubCompositionRepo) FindEdge(_ context.Context, parent model.ParentRef, kind model.ComponentKind, componentID uuid.UUID) (*model.Composition, error) {
	for _, c := range r.edges {
		if c.ParentKind == parent.Kind && c.ParentID == parent.ID &&
			c.ComponentKind == kind && c.ComponentID == componentID {
			copied := r.withAssignments(*c)
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCompositionRepo) ListParentsOf(_ context.Context, kind model.ComponentKind, componentID uuid.UUID) ([]model.Composition, error) {
	var result []model.Composition
	for _, id := range r.order {
		c := r.edges[id]
		if c.ComponentKind == kind && c.ComponentID == componentID {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (r *stubCompositionRepo) ListSubAssemblyIDs(_ context.Context, assemblyID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, id := range r.order {
		c := r.edges[id]
		if c.ParentKind == model.ParentAssembly && c.ParentID == assemblyID &&
			c.ComponentKind == model.ComponentSubAssembly {
			ids = append(ids, c.ComponentID)
		}
	}
	return ids, nil
}

func (r *stubCompositionRepo) UpdateSortOrderTx(_ *gorm.DB, id uuid.UUID, sortOrder int) error {
	c, ok := r.edges[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.SortOrder = sortOrder
	return nil
}

func (r *stubCompositionRepo) ListAssignments(_ context.Context, compositionID uuid.UUID) ([]model.CompositionAssignment, error) {
	rows := append([]model.CompositionAssignment(nil), r.assignments[compositionID]...)
	for i := range rows {
		if lot, ok := r.lots.lots[rows[i].LotID]; ok {
			copied := *lot
			copied.Product = r.lots.products.products[lot.ProductID]
			rows[i].Lot = &copied
		}
	}
	return rows, nil
}

func (r *stubCompositionRepo) DeleteAssignmentsTx(_ *gorm.DB, compositionID uuid.UUID) error {
	delete(r.assignments, compositionID)
	return nil
}

func (r *stubCompositionRepo) CreateAssignmentsTx(_ *gorm.DB, rows []model.CompositionAssignment) error {
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		r.assignments[rows[i].CompositionID] = append(r.assignments[rows[i].CompositionID], rows[i])
	}
	return nil
}

func (r *stubCompositionRepo) DB() *gorm.DB { return nil }

type stubFinishedUnitRepo struct {
	units   map[uuid.UUID]*model.FinishedUnit
	history []model.UnitCostHistory
}

func newStubFinishedUnitRepo() *stubFinishedUnitRepo {
	return &stubFinishedUnitRepo{units: make(map[uuid.UUID]*model.FinishedUnit)}
}

func (r *stubFinishedUnitRepo) Create(_ context.Context, fu *model.FinishedUnit) error {
	if fu.ID == uuid.Nil {
		fu.ID = uuid.New()
	}
	r.units[fu.ID] = fu
	return nil
}

func (r *stubFinishedUnitRepo) FindByID(_ context.Context, id uuid.UUID) (*model.FinishedUnit, error) {
	fu, ok := r.units[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return fu, nil
}

func (r *stubFinishedUnitRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.FinishedUnit, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubFinishedUnitRepo) Update(_ context.Context, fu *model.FinishedUnit) error {
	r.units[fu.ID] = fu
	return nil
}

func (r *stubFinishedUnitRepo) AdjustInventoryTx(_ *gorm.DB, id uuid.UUID, delta int) error {
	fu, ok := r.units[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if fu.InventoryCount+delta < 0 {
		return gorm.ErrInvalidData
	}
	fu.InventoryCount += delta
	return nil
}

func (r *stubFinishedUnitRepo) UpdateCostTx(_ *gorm.DB, id uuid.UUID, cost decimal.Decimal) error {
	fu, ok := r.units[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	fu.UnitCost = cost
	return nil
}

func (r *stubFinishedUnitRepo) CreateCostHistoryTx(_ *gorm.DB, h *model.UnitCostHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	r.history = append(r.history, *h)
	return nil
}

func (r *stubFinishedUnitRepo) DB() *gorm.DB { return nil }

type stubRecipeRepo struct {
	recipes map[uuid.UUID]*model.Recipe
	batches []model.Batch
}

func newStubRecipeRepo() *stubRecipeRepo {
	return &stubRecipeRepo{recipes: make(map[uuid.UUID]*model.Recipe)}
}

func (r *stubRecipeRepo) Create(_ context.Context, _ *gorm.DB, recipe *model.Recipe) error {
	if recipe.ID == uuid.Nil {
		recipe.ID = uuid.New()
	}
	r.recipes[recipe.ID] = recipe
	return nil
}

func (r *stubRecipeRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Recipe, error) {
	recipe, ok := r.recipes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return recipe, nil
}

func (r *stubRecipeRepo) CreateBatchTx(_ *gorm.DB, batch *model.Batch) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	r.batches = append(r.batches, *batch)
	return nil
}

func (r *stubRecipeRepo) ListBatches(_ context.Context, recipeID uuid.UUID) ([]model.Batch, error) {
	var result []model.Batch
	for _, b := range r.batches {
		if b.RecipeID == recipeID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (r *stubRecipeRepo) DB() *gorm.DB { return nil }

type stubAssemblyRepo struct {
	assemblies map[uuid.UUID]*model.Assembly
	packages   map[uuid.UUID]*model.GiftPackage
	runs       []model.AssemblyRun
}

func newStubAssemblyRepo() *stubAssemblyRepo {
	return &stubAssemblyRepo{
		assemblies: make(map[uuid.UUID]*model.Assembly),
		packages:   make(map[uuid.UUID]*model.GiftPackage),
	}
}

func (r *stubAssemblyRepo) CreateAssembly(_ context.Context, a *model.Assembly) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.assemblies[a.ID] = a
	return nil
}

func (r *stubAssemblyRepo) FindAssembly(_ context.Context, id uuid.UUID) (*model.Assembly, error) {
	a, ok := r.assemblies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return a, nil
}

func (r *stubAssemblyRepo) CreatePackage(_ context.Context, p *model.GiftPackage) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.packages[p.ID] = p
	return nil
}

func (r *stubAssemblyRepo) FindPackage(_ context.Context, id uuid.UUID) (*model.GiftPackage, error) {
	p, ok := r.packages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *stubAssemblyRepo) CreateRunTx(_ *gorm.DB, run *model.AssemblyRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	r.runs = append(r.runs, *run)
	return nil
}

func (r *stubAssemblyRepo) FindRun(_ context.Context, id uuid.UUID) (*model.AssemblyRun, error) {
	for i := range r.runs {
		if r.runs[i].ID == id {
			return &r.runs[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubAssemblyRepo) ListRuns(_ context.Context, assemblyID uuid.UUID) ([]model.AssemblyRun, error) {
	var result []model.AssemblyRun
	for _, run := range r.runs {
		if run.AssemblyID == assemblyID {
			result = append(result, run)
		}
	}
	return result, nil
}

func (r *stubAssemblyRepo) DB() *gorm.DB { return nil }

// ── Fixture wiring all services over the stubs ───────────────────────────────

type fixture struct {
	products      *stubProductRepo
	materials     *stubMaterialRepo
	lots          *stubLotRepo
	movements     *stubMovementRepo
	compositions  *stubCompositionRepo
	finishedUnits *stubFinishedUnitRepo
	recipes       *stubRecipeRepo
	assemblies    *stubAssemblyRepo
	cache         cache.HierarchyCache

	inventory   InventoryService
	hierarchy   HierarchyService
	composition CompositionService
	assignment  AssignmentService
	production  ProductionService
	assembly    AssemblyService
}

func newFixture() *fixture {
	f := &fixture{
		products:      newStubProductRepo(),
		movements:     newStubMovementRepo(),
		finishedUnits: newStubFinishedUnitRepo(),
		recipes:       newStubRecipeRepo(),
		assemblies:    newStubAssemblyRepo(),
		cache:         cache.NewMemoryCache(cache.DefaultTTL),
	}
	f.materials = newStubMaterialRepo(f.products)
	f.lots = newStubLotRepo(f.products)
	f.compositions = newStubCompositionRepo(f.lots)

	converter := unit.NewTableConverter()
	f.inventory = NewInventoryService(f.lots, f.products, f.materials, f.movements, converter)
	f.hierarchy = NewHierarchyService(f.compositions, f.assemblies, f.finishedUnits,
		f.products, f.materials, f.lots, f.inventory, f.cache)
	f.composition = NewCompositionService(f.compositions, f.assemblies, f.products,
		f.finishedUnits, f.materials, f.hierarchy)
	f.assignment = NewAssignmentService(f.compositions, f.lots, f.products,
		f.inventory, f.hierarchy)
	f.production = NewProductionService(f.recipes, f.finishedUnits, f.compositions,
		f.movements, f.inventory, f.hierarchy)
	f.assembly = NewAssemblyService(f.assemblies, f.compositions, f.finishedUnits,
		f.products, f.materials, f.lots, f.movements, f.inventory, f.hierarchy)
	return f
}

func (f *fixture) addProduct(name, family, unitName string, kind model.ProductKind) *model.Product {
	p := &model.Product{Name: name, Family: family, Unit: unitName, Kind: kind, Active: true}
	_ = f.products.Create(context.Background(), p)
	return p
}

func (f *fixture) addGenericProduct(name, family string) *model.Product {
	p := &model.Product{
		Name: name, Family: family, Unit: "unit",
		Kind: model.ProductPackaging, IsGeneric: true, Active: true,
	}
	_ = f.products.Create(context.Background(), p)
	return p
}

func (f *fixture) addLot(productID uuid.UUID, qty, cost string, purchased time.Time) *model.Lot {
	lot := &model.Lot{
		ProductID:         productID,
		QuantityRemaining: d(qty),
		UnitCost:          d(cost),
		PurchaseDate:      purchased,
	}
	_ = f.lots.Create(context.Background(), nil, lot)
	return lot
}

func (f *fixture) addAssembly(name string) *model.Assembly {
	a := &model.Assembly{Name: name, Active: true}
	_ = f.assemblies.CreateAssembly(context.Background(), a)
	return a
}

func (f *fixture) addPackage(name string) *model.GiftPackage {
	p := &model.GiftPackage{Name: name, Active: true}
	_ = f.assemblies.CreatePackage(context.Background(), p)
	return p
}

func (f *fixture) addFinishedUnit(name, cost string, count int) *model.FinishedUnit {
	fu := &model.FinishedUnit{Name: name, UnitCost: d(cost), InventoryCount: count, Active: true}
	_ = f.finishedUnits.Create(context.Background(), fu)
	return fu
}

func (f *fixture) addEdge(parent model.ParentRef, kind model.ComponentKind, componentID uuid.UUID, qty string) *model.Composition {
	c := &model.Composition{
		ParentKind:    parent.Kind,
		ParentID:      parent.ID,
		ComponentKind: kind,
		ComponentID:   componentID,
		Quantity:      d(qty),
	}
	_ = f.compositions.Create(context.Background(), nil, c)
	return c
}

func assemblyRef(id uuid.UUID) model.ParentRef {
	return model.ParentRef{Kind: model.ParentAssembly, ID: id}
}

func packageRef(id uuid.UUID) model.ParentRef {
	return model.ParentRef{Kind: model.ParentPackage, ID: id}
}
