package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ethani/backend/chain"
	"github.com/ethani/backend/pricing"
	"github.com/ethani/backend/store"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "ETHANI Pricing API"

// Handler implements the HTTP API.
type Handler struct {
	store    *store.Store
	chain    *chain.Client
	validate *validator.Validate
}

// NewHandler builds the API handler set.
func NewHandler(st *store.Store, ch *chain.Client) *Handler {
	return &Handler{
		store:    st,
		chain:    ch,
		validate: validator.New(),
	}
}

// ---------- request payloads ----------

type registerRequest struct {
	Phone      string `json:"phone" validate:"required,min=10"`
	Name       string `json:"name" validate:"required,min=2"`
	Email      string `json:"email"`
	NationalID string `json:"national_id"`
	Location   string `json:"location" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=farmer livestock_farmer distributor buyer investor circular_economy learner"`
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required,min=10"`
	Password string `json:"password"`
}

type supplyReportRequest struct {
	Phone        string `json:"phone" validate:"required"`
	Region       string `json:"region" validate:"required"`
	FoodCategory string `json:"food_category" validate:"required"`
	SupplyUnits  int    `json:"supply_units" validate:"required,gt=0"`
}

type wasteReportRequest struct {
	Phone            string  `json:"phone" validate:"required"`
	WasteType        string  `json:"waste_type" validate:"required"`
	QuantityKg       float64 `json:"quantity_kg" validate:"required,gt=0"`
	ProcessingMethod string  `json:"processing_method" validate:"required"`
}

type priceDetailedRequest struct {
	Supply       int      `json:"supply" validate:"required,gt=0"`
	Demand       *int     `json:"demand" validate:"required,gte=0"`
	BasePrice    int      `json:"base_price" validate:"required,gt=0"`
	SeasonFactor *float64 `json:"season_factor" validate:"omitempty,gte=0.5,lte=2.0"`
}

// decodeAndValidate decodes the JSON body into v and runs struct validation,
// writing the error response itself on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		badRequest(w, err.Error())
		return false
	}
	return true
}

// userOrNotFound loads a user by phone, writing 404 when absent.
func (h *Handler) userOrNotFound(w http.ResponseWriter, r *http.Request, phone string) (*store.User, bool) {
	user, err := h.store.GetUserByPhone(r.Context(), phone)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "User not found")
		return nil, false
	}
	if err != nil {
		GetZlog().Error().Err(err).Msg("user lookup failed")
		internalError(w, "Failed to look up user")
		return nil, false
	}
	return user, true
}

// ---------- service endpoints ----------

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    ServiceName,
		"docs":       "/docs",
		"health":     "/health",
		"blockchain": "/blockchain",
		"rules":      "/rules",
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"ai_used":   false,
	})
}

// Blockchain handles GET /blockchain.
func (h *Handler) Blockchain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chain.Health())
}

// Rules handles GET /rules.
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pricing.Rules())
}

// ---------- pricing endpoints ----------

// Price handles GET /price. The quote comes from the pricing contract (or
// its mock), never from a local shortcut.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	supply, ok := queryInt(w, r, "supply")
	if !ok {
		return
	}
	if supply <= 0 {
		badRequest(w, "Supply must be positive")
		return
	}
	demand, ok := queryInt(w, r, "demand")
	if !ok {
		return
	}
	basePrice, ok := queryInt(w, r, "base_price")
	if !ok {
		return
	}
	region := r.URL.Query().Get("region")
	if region == "" {
		region = "Default Region"
	}
	seasonFactor, ok := querySeasonFactor(w, r)
	if !ok {
		return
	}
	_ = seasonFactor // bounds-checked; the contract prices without it

	if err := pricing.ValidateInputs(supply, demand, basePrice); err != nil {
		badRequest(w, err.Error())
		return
	}

	quote := h.chain.CalculatePrice(r.Context(), supply, demand, basePrice, region)
	writeJSON(w, http.StatusOK, map[string]any{
		"region":      region,
		"base_price":  basePrice,
		"supply":      supply,
		"demand":      demand,
		"final_price": quote.FinalPrice,
		"reason":      quote.Reason,
		"method":      "rule_based",
		"ai_used":     false,
	})
}

// Ratio handles GET /ratio.
func (h *Handler) Ratio(w http.ResponseWriter, r *http.Request) {
	supply, ok := queryInt(w, r, "supply")
	if !ok {
		return
	}
	demand, ok := queryInt(w, r, "demand")
	if !ok {
		return
	}
	if supply <= 0 {
		badRequest(w, "Supply must be positive")
		return
	}
	if demand < 0 {
		badRequest(w, "Demand cannot be negative")
		return
	}

	analysis := pricing.Ratio(supply, demand)
	writeJSON(w, http.StatusOK, analysis)
}

// PriceDetailed handles POST /price-detailed with a full calculation
// breakdown.
func (h *Handler) PriceDetailed(w http.ResponseWriter, r *http.Request) {
	var req priceDetailedRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	demand := *req.Demand
	if err := pricing.ValidateInputs(req.Supply, demand, req.BasePrice); err != nil {
		badRequest(w, err.Error())
		return
	}
	seasonFactor := pricing.DefaultSeasonFactor
	if req.SeasonFactor != nil {
		seasonFactor = *req.SeasonFactor
	}

	result := pricing.Calculate(req.Supply, demand, req.BasePrice, seasonFactor)
	analysis := pricing.Ratio(req.Supply, demand)

	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"inputs": map[string]any{
			"supply":        req.Supply,
			"demand":        demand,
			"base_price":    req.BasePrice,
			"season_factor": seasonFactor,
		},
		"ratio_analysis": analysis,
		"price_calculation": map[string]any{
			"suggested_price": result.SuggestedPrice,
			"multiplier":      result.Multiplier,
			"reason":          result.Reason,
			"is_capped":       result.IsCapped,
			"formulas":        result.Calculations,
		},
		"metadata": map[string]any{
			"ai_used":   false,
			"method":    "rule_based",
			"auditable": true,
		},
	})
}

// ---------- user endpoints ----------

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.RegisterUser(r.Context(), req.Phone, req.Name, req.Email, req.NationalID, req.Location, req.Role)
	if errors.Is(err, store.ErrPhoneExists) {
		badRequest(w, "Phone number already registered")
		return
	}
	if err != nil {
		GetZlog().Error().Err(err).Msg("registration failed")
		internalError(w, "Registration error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
		"message": fmt.Sprintf("User %s registered successfully as %s", user.Name, user.Role),
	})
}

// Login handles POST /login. Phone verification only.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByPhone(r.Context(), req.Phone)
	if errors.Is(err, store.ErrNotFound) {
		unauthorized(w, "User not found. Please register first.")
		return
	}
	if err != nil {
		GetZlog().Error().Err(err).Msg("login lookup failed")
		internalError(w, "Login error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
		"message": fmt.Sprintf("Welcome back, %s!", user.Name),
	})
}

// GetUser handles GET /user/{phone}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userOrNotFound(w, r, pathParam(r, "phone"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UsersByRole handles GET /users/role/{role}.
func (h *Handler) UsersByRole(w http.ResponseWriter, r *http.Request) {
	role := pathParam(r, "role")
	users, err := h.store.UsersByRole(r.Context(), role)
	if err != nil {
		GetZlog().Error().Err(err).Msg("users by role failed")
		internalError(w, "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"role":  role,
		"count": len(users),
		"users": users,
	})
}

// UsersByLocation handles GET /users/location/{location}.
func (h *Handler) UsersByLocation(w http.ResponseWriter, r *http.Request) {
	location := pathParam(r, "location")
	users, err := h.store.UsersByLocation(r.Context(), location)
	if err != nil {
		GetZlog().Error().Err(err).Msg("users by location failed")
		internalError(w, "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location": location,
		"count":    len(users),
		"users":    users,
	})
}

// ---------- report endpoints ----------

// SupplyReport handles POST /supply-report. Farmers only; accurate reporting
// is rewarded with points.
func (h *Handler) SupplyReport(w http.ResponseWriter, r *http.Request) {
	var req supplyReportRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	user, ok := h.userOrNotFound(w, r, req.Phone)
	if !ok {
		return
	}
	if user.Role != "farmer" && user.Role != "livestock_farmer" {
		forbidden(w, "Only farmers can submit supply reports")
		return
	}

	if err := h.store.RecordSupply(r.Context(), user.ID, req.Region, req.FoodCategory, req.SupplyUnits); err != nil {
		GetZlog().Error().Err(err).Msg("record supply failed")
		internalError(w, "Error recording supply")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Supply recorded and points awarded",
	})
}

// SupplyByRegion handles GET /supply/{region}.
func (h *Handler) SupplyByRegion(w http.ResponseWriter, r *http.Request) {
	region := pathParam(r, "region")
	reports, err := h.store.SupplyByRegion(r.Context(), region)
	if err != nil {
		GetZlog().Error().Err(err).Msg("supply by region failed")
		internalError(w, "Failed to list supply reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"region":        region,
		"total_reports": len(reports),
		"reports":       reports,
	})
}

// WasteReport handles POST /waste-report. Circular economy participants only.
func (h *Handler) WasteReport(w http.ResponseWriter, r *http.Request) {
	var req wasteReportRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	user, ok := h.userOrNotFound(w, r, req.Phone)
	if !ok {
		return
	}
	if user.Role != "circular_economy" {
		forbidden(w, "Only circular economy participants can submit waste reports")
		return
	}

	credits, err := h.store.RecordWaste(r.Context(), user.ID, req.WasteType, req.QuantityKg, req.ProcessingMethod)
	if err != nil {
		GetZlog().Error().Err(err).Msg("record waste failed")
		internalError(w, "Error recording waste")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"energy_credits": credits,
		"message":        fmt.Sprintf("Waste recorded: %v energy credits earned", credits),
	})
}

// WasteByUser handles GET /waste/{phone}.
func (h *Handler) WasteByUser(w http.ResponseWriter, r *http.Request) {
	phone := pathParam(r, "phone")
	user, ok := h.userOrNotFound(w, r, phone)
	if !ok {
		return
	}

	records, err := h.store.WasteByUser(r.Context(), user.ID)
	if err != nil {
		GetZlog().Error().Err(err).Msg("waste by user failed")
		internalError(w, "Failed to list waste reports")
		return
	}

	var totalKg, totalCredits float64
	for _, rec := range records {
		totalKg += rec.QuantityKg
		totalCredits += rec.EnergyCredits
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"phone":                phone,
		"total_waste_kg":       totalKg,
		"total_energy_credits": totalCredits,
		"reports":              records,
	})
}

// RegionalMetrics handles GET /regional-metrics/{region}.
func (h *Handler) RegionalMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.RegionalMetrics(r.Context(), pathParam(r, "region"))
	if err != nil {
		GetZlog().Error().Err(err).Msg("regional metrics failed")
		internalError(w, "Failed to aggregate regional metrics")
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// ---------- delivery endpoints ----------

// CreateDelivery handles POST /delivery/create. Parameters arrive as query
// values, which the previous service required.
func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	phone := q.Get("phone")
	origin := q.Get("origin")
	destination := q.Get("destination")
	foodCategory := q.Get("food_category")
	if phone == "" || origin == "" || destination == "" || foodCategory == "" {
		badRequest(w, "phone, origin, destination and food_category are required")
		return
	}
	quantity, err := strconv.Atoi(q.Get("quantity"))
	if err != nil || quantity <= 0 {
		badRequest(w, "quantity must be a positive integer")
		return
	}

	user, ok := h.userOrNotFound(w, r, phone)
	if !ok {
		return
	}
	if user.Role != "distributor" {
		forbidden(w, "Only distributors can create deliveries")
		return
	}

	id, err := h.store.CreateDelivery(r.Context(), user.ID, origin, destination, foodCategory, quantity)
	if err != nil {
		GetZlog().Error().Err(err).Msg("create delivery failed")
		internalError(w, "Error creating delivery")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"delivery_id": id,
		"message":     "Delivery order created",
	})
}

// CompleteDelivery handles POST /delivery/complete/{delivery_id}.
func (h *Handler) CompleteDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "delivery_id"), 10, 64)
	if err != nil {
		badRequest(w, "delivery_id must be an integer")
		return
	}

	err = h.store.CompleteDelivery(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Delivery not found")
		return
	}
	if err != nil {
		GetZlog().Error().Err(err).Msg("complete delivery failed")
		internalError(w, "Error completing delivery")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Delivery marked complete and points awarded",
	})
}

// Deliveries handles GET /deliveries/{status}.
func (h *Handler) Deliveries(w http.ResponseWriter, r *http.Request) {
	status := pathParam(r, "status")
	if !slices.Contains(store.DeliveryStatuses, status) {
		badRequest(w, "Status must be one of pending, in_transit, completed")
		return
	}

	deliveries, err := h.store.DeliveriesByStatus(r.Context(), status)
	if err != nil {
		GetZlog().Error().Err(err).Msg("deliveries by status failed")
		internalError(w, "Failed to list deliveries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"count":      len(deliveries),
		"deliveries": deliveries,
	})
}

// ---------- request helpers ----------

// pathParam returns the named route parameter. chi leaves parameters in
// their escaped form, so spaces in regions and locations arrive as %20.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// queryInt parses a required integer query parameter, writing a 400 when
// missing or malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		badRequest(w, fmt.Sprintf("%s is required", name))
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(w, fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return v, true
}

// querySeasonFactor parses the optional season_factor parameter and enforces
// its bounds.
func querySeasonFactor(w http.ResponseWriter, r *http.Request) (float64, bool) {
	raw := r.URL.Query().Get("season_factor")
	if raw == "" {
		return pricing.DefaultSeasonFactor, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		badRequest(w, "season_factor must be a number")
		return 0, false
	}
	if err := pricing.ValidateSeasonFactor(v); err != nil {
		badRequest(w, err.Error())
		return 0, false
	}
	return v, true
}
