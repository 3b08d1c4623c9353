package dto

type CreateTaskRequest struct {
	Title    string  `json:"title" binding:"required"`
	DueDate  float64 `json:"dueDate" binding:"required"`
	Category string  `json:"category"`
}

type SetDoneRequest struct {
	IsDone *bool `json:"isDone" binding:"required"`
}

type MoveCategoriesRequest struct {
	From []int `json:"from" binding:"required,min=1"`
	To   *int  `json:"to" binding:"required"`
}

type PlanRequest struct {
	Categories []string `json:"categories" binding:"required,min=1"`
}
