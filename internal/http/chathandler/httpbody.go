package chathandler

type StatusResponse struct {
	Message string `json:"message" example:"Cloud Chat Backend is running!"`
} // @name StatusResponse

type ClientsResponse struct {
	Count   int      `json:"count"   example:"2"`
	Clients []string `json:"clients" example:"alice,bob"`
} // @name ClientsResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListSessionsQuery struct {
	Limit int `form:"limit,default=20" binding:"gte=1,lte=100"`
} // @name ListSessionsQuery
