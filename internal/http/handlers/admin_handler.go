// Admin HTTP handlers.
//
// This file exposes the administrative CRUD surface, all behind the uniform
// bearer-token middleware:
//   - GET    /admin/users            (paginated listing)
//   - PATCH  /admin/users/{id}       (edit nickname / birth date / guardian)
//   - DELETE /admin/users/{id}       (cascades to conversation rows)
//   - GET    /admin/stats
//   - GET    /admin/conversations    (read one user's log)
//   - DELETE /admin/conversations    (by ids, by user+persona, or by user)
//   - GET/POST/PATCH/DELETE /admin/ips (IP allow-list)
//
// Admin handlers call the repository directly: the operations are plain data
// maintenance with no business rules beyond validation, and every delete
// reports the exact affected-row count.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-fortune-backend/internal/repo"
	"github.com/tbourn/go-fortune-backend/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// AdminUpdateUserRequest carries the editable user fields. Pointer fields
// distinguish "not sent" from zero values.
type AdminUpdateUserRequest struct {
	Nickname   *string `json:"nickname,omitempty"`
	BirthYear  *int    `json:"birthYear,omitempty"`
	BirthMonth *int    `json:"birthMonth,omitempty"`
	BirthDay   *int    `json:"birthDay,omitempty"`
	Guardian   *string `json:"guardian,omitempty"`
}

// AdminDeleteConversationsRequest selects rows to delete: explicit ids, a
// (user, persona) pair, or everything for a user.
type AdminDeleteConversationsRequest struct {
	IDs       []uint `json:"ids,omitempty"`
	UserID    uint   `json:"userId,omitempty"`
	Character string `json:"character,omitempty"`
}

// AdminCreateIPRequest adds one address to the allow-list.
type AdminCreateIPRequest struct {
	IPAddress   string `json:"ipAddress" binding:"required" example:"203.0.113.7"`
	Description string `json:"description"`
}

// AdminUpdateIPRequest toggles an allow-list entry.
type AdminUpdateIPRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

func pathID(c *gin.Context) (uint, bool) {
	id := utils.AtoiDefault(c.Param("id"), 0)
	if id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

//
// Users
//

// AdminListUsers godoc
// @ID          adminListUsers
// @Summary     List users (paginated)
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  map[string]any
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /admin/users [get]
func (h *Handlers) AdminListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	total, err := repo.CountUsers(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to count users")
		return
	}
	users, err := repo.ListUsersPage(ctx, h.db, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list users")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, gin.H{
		"users": users,
		"pagination": Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// AdminUpdateUser godoc
// @ID          adminUpdateUser
// @Summary     Edit a user
// @Description Updates nickname, birth date, or guardian. Birth fields are validated against the accepted ranges.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
//
// @Param       id    path  int  true  "User id"
// @Param       body  body  handlers.AdminUpdateUserRequest  true  "Fields to update"
//
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /admin/users/{id} [patch]
func (h *Handlers) AdminUpdateUser(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	var req AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	fields := map[string]any{}
	if req.Nickname != nil {
		nick := strings.TrimSpace(*req.Nickname)
		if nick == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "nickname must not be empty")
			return
		}
		fields["nickname"] = nick
	}
	if req.BirthYear != nil {
		if *req.BirthYear < 1900 || *req.BirthYear > 2100 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "birthYear out of range")
			return
		}
		fields["birth_year"] = *req.BirthYear
	}
	if req.BirthMonth != nil {
		if *req.BirthMonth < 1 || *req.BirthMonth > 12 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "birthMonth out of range")
			return
		}
		fields["birth_month"] = *req.BirthMonth
	}
	if req.BirthDay != nil {
		if *req.BirthDay < 1 || *req.BirthDay > 31 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "birthDay out of range")
			return
		}
		fields["birth_day"] = *req.BirthDay
	}
	if req.Guardian != nil {
		fields["guardian"] = strings.TrimSpace(*req.Guardian)
	}
	if len(fields) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no fields to update")
		return
	}

	if err := repo.UpdateUserFields(c.Request.Context(), h.db, id, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to update user")
		return
	}
	ok(c, http.StatusOK, gin.H{"success": true})
}

// AdminDeleteUser godoc
// @ID          adminDeleteUser
// @Summary     Delete a user
// @Description Removes the user and all their conversation rows in one transaction, reporting the number of rows removed.
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
//
// @Param       id  path  int  true  "User id"
//
// @Success     200  {object}  map[string]any
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /admin/users/{id} [delete]
func (h *Handlers) AdminDeleteUser(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}

	removed, err := repo.DeleteUser(c.Request.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to delete user")
		return
	}
	ok(c, http.StatusOK, gin.H{"success": true, "deletedConversations": removed})
}

// AdminStats godoc
// @ID          adminStats
// @Summary     Usage statistics
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
//
// @Success     200  {object}  map[string]any
// @Router      /admin/stats [get]
func (h *Handlers) AdminStats(c *gin.Context) {
	count, last, err := repo.UsersStats(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to read stats")
		return
	}
	ok(c, http.StatusOK, gin.H{"users": count, "lastActivity": last})
}

//
// Conversations
//

// AdminListConversations godoc
// @ID          adminListConversations
// @Summary     Read one user's conversation log
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
//
// @Param       userId     query  int     true   "User id"
// @Param       character  query  string  true   "Persona id"
// @Param       limit      query  int     false  "Max rows (default 100)"
//
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /admin/conversations [get]
func (h *Handlers) AdminListConversations(c *gin.Context) {
	userID := utils.AtoiDefault(c.Query("userId"), 0)
	characterID := c.Query("character")
	if userID <= 0 || characterID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "userId and character are required")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 100)

	rows, err := repo.ListConversation(c.Request.Context(), h.db, uint(userID), characterID, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to read conversations")
		return
	}
	ok(c, http.StatusOK, gin.H{"success": true, "messages": toWireMessages(rows)})
}

// AdminDeleteConversations godoc
// @ID          adminDeleteConversations
// @Summary     Delete conversation rows
// @Description Deletes by explicit ids, by (user, persona) pair, or everything for a user. The response carries the exact affected-row count.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
//
// @Param       body  body  handlers.AdminDeleteConversationsRequest  true  "Selection"
//
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /admin/conversations [delete]
func (h *Handlers) AdminDeleteConversations(c *gin.Context) {
	var req AdminDeleteConversationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	var (
		deleted int64
		err     error
	)
	switch {
	case len(req.IDs) > 0:
		deleted, err = repo.DeleteConversationsByID(ctx, h.db, req.IDs)
	case req.UserID > 0 && req.Character != "":
		deleted, err = repo.DeleteConversationsByPair(ctx, h.db, req.UserID, req.Character)
	case req.UserID > 0:
		deleted, err = repo.DeleteConversationsByUser(ctx, h.db, req.UserID)
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ids or userId is required")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to delete conversations")
		return
	}
	ok(c, http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

//
// IP allow-list
//

// AdminListIPs godoc
// @ID          adminListIPs
// @Summary     List allow-list entries
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
//
// @Success     200  {object}  map[string]any
// @Router      /admin/ips [get]
func (h *Handlers) AdminListIPs(c *gin.Context) {
	ips, err := repo.ListAdminIPs(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list addresses")
		return
	}
	ok(c, http.StatusOK, gin.H{"ips": ips})
}

// AdminCreateIP godoc
// @ID          adminCreateIP
// @Summary     Add an allow-list entry
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
//
// @Param       body  body  handlers.AdminCreateIPRequest  true  "Address"
//
// @Success     201  {object}  domain.AdminIP
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Address already listed"
// @Router      /admin/ips [post]
func (h *Handlers) AdminCreateIP(c *gin.Context) {
	var req AdminCreateIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ip, err := repo.CreateAdminIP(c.Request.Context(), h.db, strings.TrimSpace(req.IPAddress), req.Description)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			fail(c, http.StatusConflict, ErrCodeConflict, "address already listed")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "failed to add address")
		return
	}
	ok(c, http.StatusCreated, ip)
}

// AdminUpdateIP godoc
// @ID          adminUpdateIP
// @Summary     Toggle an allow-list entry
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
//
// @Param       id    path  int  true  "Entry id"
// @Param       body  body  handlers.AdminUpdateIPRequest  true  "Active flag"
//
// @Success     200  {object}  map[string]any
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /admin/ips/{id} [patch]
func (h *Handlers) AdminUpdateIP(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	var req AdminUpdateIPRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "isActive is required")
		return
	}

	if err := repo.SetAdminIPActive(c.Request.Context(), h.db, id, *req.IsActive); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "entry not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to update entry")
		return
	}
	ok(c, http.StatusOK, gin.H{"success": true})
}

// AdminDeleteIP godoc
// @ID          adminDeleteIP
// @Summary     Remove an allow-list entry
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
//
// @Param       id  path  int  true  "Entry id"
//
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /admin/ips/{id} [delete]
func (h *Handlers) AdminDeleteIP(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	if err := repo.DeleteAdminIP(c.Request.Context(), h.db, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "entry not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to delete entry")
		return
	}
	noContent(c)
}
