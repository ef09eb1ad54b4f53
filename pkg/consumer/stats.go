package consumer

import (
	"fmt"
	"net/http"

	"github.com/adjust/rmq/v5"
)

// StatsHandler renders the rmq queue overview page
type StatsHandler struct {
	connection rmq.Connection
}

func NewStatsHandler(connection rmq.Connection) *StatsHandler {
	return &StatsHandler{connection: connection}
}

func (handler *StatsHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	layout := request.FormValue("layout")
	refresh := request.FormValue("refresh")

	queues, err := handler.connection.GetOpenQueues()
	if err != nil {
		writer.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(writer, err)
		return
	}

	stats, err := handler.connection.CollectStats(queues)
	if err != nil {
		writer.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(writer, err)
		return
	}

	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(writer, stats.GetHtml(layout, refresh))
}
