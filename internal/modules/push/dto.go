package push

type RegisterDeviceRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"omitempty,oneof=ios android web"`
}

type UnregisterDeviceRequest struct {
	Token string `json:"token" binding:"required"`
}

type SendRequest struct {
	UserIDs []int64        `json:"user_ids" binding:"required,min=1"`
	Title   string         `json:"title" binding:"required"`
	Body    string         `json:"body" binding:"required"`
	Data    map[string]any `json:"data"`
}
