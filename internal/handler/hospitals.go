package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/carefinder-api/internal/apperror"
	"github.com/iliyamo/carefinder-api/internal/model"
	"github.com/iliyamo/carefinder-api/internal/repository"
)

// HospitalStore is the hospitals collection as the handlers use it.
type HospitalStore interface {
	List(ctx context.Context, f model.HospitalFilter) ([]model.Hospital, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Hospital, error)
	Create(ctx context.Context, h *model.Hospital) error
	Put(ctx context.Context, id primitive.ObjectID, h *model.Hospital) (created bool, err error)
	Patch(ctx context.Context, id primitive.ObjectID, set bson.M) (*model.Hospital, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

var _ HospitalStore = (*repository.HospitalRepo)(nil)

// HospitalHandler serves /hospitals.
type HospitalHandler struct {
	Store   HospitalStore
	Timeout time.Duration
}

func NewHospitalHandler(store HospitalStore, timeout time.Duration) *HospitalHandler {
	return &HospitalHandler{Store: store, Timeout: timeout}
}

// ----- DTOs -----

// optBool remembers whether a boolean was supplied at all, so PATCH can
// tell false from absent. It binds from JSON and from form values.
type optBool struct {
	Set   bool
	Value bool
}

func (b *optBool) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &b.Value); err != nil {
		return err
	}
	b.Set = true
	return nil
}

func (b *optBool) UnmarshalParam(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.Set, b.Value = true, v
	return nil
}

type hospitalReq struct {
	ProviderID        string          `json:"providerId" form:"providerId"`
	Name              string          `json:"name" form:"name"`
	Address           string          `json:"address" form:"address"`
	City              string          `json:"city" form:"city"`
	State             string          `json:"state" form:"state"`
	ZipCode           string          `json:"zipCode" form:"zipCode"`
	County            string          `json:"county" form:"county"`
	PhoneNumber       string          `json:"phoneNumber" form:"phoneNumber"`
	Type              string          `json:"type" form:"type"`
	Ownership         string          `json:"ownership" form:"ownership"`
	EmergencyServices optBool         `json:"emergencyServices" form:"emergencyServices"`
	Location          *model.Location `json:"location"`
}

func (r hospitalReq) toModel() *model.Hospital {
	return &model.Hospital{
		ProviderID:        r.ProviderID,
		Name:              r.Name,
		Address:           r.Address,
		City:              r.City,
		State:             r.State,
		ZipCode:           r.ZipCode,
		County:            r.County,
		PhoneNumber:       r.PhoneNumber,
		Type:              r.Type,
		Ownership:         r.Ownership,
		EmergencyServices: r.EmergencyServices.Value,
		Location:          r.Location,
	}
}

// toSet lists the supplied fields as a $set document.
func (r hospitalReq) toSet() bson.M {
	set := bson.M{}
	for key, val := range map[string]string{
		"providerId":  r.ProviderID,
		"name":        r.Name,
		"address":     r.Address,
		"city":        r.City,
		"state":       r.State,
		"zipCode":     r.ZipCode,
		"county":      r.County,
		"phoneNumber": r.PhoneNumber,
		"type":        r.Type,
		"ownership":   r.Ownership,
	} {
		if val != "" {
			set[key] = val
		}
	}
	if r.EmergencyServices.Set {
		set["emergencyServices"] = r.EmergencyServices.Value
	}
	if r.Location != nil {
		set["location"] = r.Location
	}
	return set
}

func bindHospital(c echo.Context, requireProvider bool) (hospitalReq, error) {
	var req hospitalReq
	if err := c.Bind(&req); err != nil {
		return req, apperror.Validation(apperror.MsgValidation).Wrap(err)
	}
	if requireProvider && req.ProviderID == "" {
		return req, apperror.Validation(apperror.MsgMissingProviderID)
	}
	return req, nil
}

// hospitalID parses the :id path parameter.
func hospitalID(c echo.Context) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return primitive.NilObjectID, apperror.Validation(apperror.MsgUnacceptableID)
	}
	return id, nil
}

func hospitalStoreError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(apperror.MsgHospitalAbsent)
	}
	return apperror.Internal(err)
}

// List: GET /hospitals?providerId&name&city&state&zipCode&county
func (h *HospitalHandler) List(c echo.Context) error {
	f := model.HospitalFilter{
		ProviderID: c.QueryParam("providerId"),
		Name:       c.QueryParam("name"),
		City:       c.QueryParam("city"),
		State:      c.QueryParam("state"),
		ZipCode:    c.QueryParam("zipCode"),
		County:     c.QueryParam("county"),
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	list, err := h.Store.List(ctx, f)
	if err != nil {
		return hospitalStoreError(err)
	}
	if list == nil {
		list = []model.Hospital{}
	}
	return c.JSON(http.StatusOK, dataResp{Data: list})
}

// Get: GET /hospitals/:id
func (h *HospitalHandler) Get(c echo.Context) error {
	id, err := hospitalID(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	hosp, err := h.Store.FindByID(ctx, id)
	if err != nil {
		return hospitalStoreError(err)
	}
	return c.JSON(http.StatusOK, dataResp{Data: hosp})
}

// Create: POST /hospitals (guarded). The new id is returned in Location.
func (h *HospitalHandler) Create(c echo.Context) error {
	req, err := bindHospital(c, true)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	hosp := req.toModel()
	if err := h.Store.Create(ctx, hosp); err != nil {
		return hospitalStoreError(err)
	}
	c.Response().Header().Set(echo.HeaderLocation, hosp.ID.Hex())
	return c.JSON(http.StatusCreated, dataResp{Data: hosp})
}

// Put: PUT /hospitals/:id (guarded). Replaces the hospital, or creates it
// under :id when it does not exist yet.
func (h *HospitalHandler) Put(c echo.Context) error {
	id, err := hospitalID(c)
	if err != nil {
		return err
	}
	req, err := bindHospital(c, true)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	hosp := req.toModel()
	created, err := h.Store.Put(ctx, id, hosp)
	if err != nil {
		return hospitalStoreError(err)
	}
	if created {
		c.Response().Header().Set(echo.HeaderLocation, hosp.ID.Hex())
		return c.JSON(http.StatusCreated, dataResp{Data: hosp})
	}
	return c.JSON(http.StatusOK, dataResp{Data: hosp})
}

// Patch: PATCH /hospitals/:id (guarded). Upserts the supplied fields.
func (h *HospitalHandler) Patch(c echo.Context) error {
	id, err := hospitalID(c)
	if err != nil {
		return err
	}
	req, err := bindHospital(c, false)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	hosp, err := h.Store.Patch(ctx, id, req.toSet())
	if err != nil {
		return hospitalStoreError(err)
	}
	return c.JSON(http.StatusOK, dataResp{Data: hosp})
}

// Delete: DELETE /hospitals/:id (guarded)
func (h *HospitalHandler) Delete(c echo.Context) error {
	id, err := hospitalID(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Store.Delete(ctx, id); err != nil {
		return hospitalStoreError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
