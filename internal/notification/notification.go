/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notification

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kassa-labs/recon/config"
	"github.com/kassa-labs/recon/internal/request"
	"github.com/sirupsen/logrus"
)

// Alert describes a systemic failure worth paging someone for.
type Alert struct {
	Event    string    `json:"event"`
	TenantID string    `json:"tenant_id,omitempty"`
	Error    string    `json:"error"`
	Time     time.Time `json:"time"`
}

// SlackNotification posts the alert to a Slack incoming webhook.
func SlackNotification(webhookURL string, alert Alert) error {
	data := json.RawMessage(fmt.Sprintf(`{
		"blocks": [
			{
				"type": "header",
				"text": {
					"type": "plain_text",
					"text": "Reconciliation error",
					"emoji": true
				}
			},
			{
				"type": "section",
				"fields": [
					{"type": "mrkdwn", "text": "*Event:*\n%s"},
					{"type": "mrkdwn", "text": "*Tenant:*\n%s"}
				]
			},
			{
				"type": "section",
				"fields": [
					{"type": "mrkdwn", "text": "*Error:*\n%s"},
					{"type": "mrkdwn", "text": "*Time:*\n%s"}
				]
			}
		]
	}`, alert.Event, alert.TenantID, escape(alert.Error), alert.Time.Format(time.RFC822)))

	payload, err := request.ToJsonReq(&data)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, webhookURL, payload)
	if err != nil {
		return err
	}
	_, err = request.Call(req, nil)
	return err
}

// WebhookNotification posts the alert as JSON to a generic endpoint.
func WebhookNotification(url string, headers map[string]string, alert Alert) error {
	payload, err := request.ToJsonReq(alert)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, payload)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	_, err = request.Call(req, nil)
	return err
}

// Notify delivers the alert to every configured channel and returns the last failure.
func Notify(cnf config.Notification, alert Alert) error {
	var lastErr error
	if cnf.Slack.WebhookUrl != "" {
		if err := SlackNotification(cnf.Slack.WebhookUrl, alert); err != nil {
			logrus.WithError(err).Warn("slack notification failed")
			lastErr = err
		}
	}
	if cnf.Webhook.Url != "" {
		if err := WebhookNotification(cnf.Webhook.Url, cnf.Webhook.Headers, alert); err != nil {
			logrus.WithError(err).Warn("webhook notification failed")
			lastErr = err
		}
	}
	return lastErr
}

// NotifyError logs a systemic error and sends it to the configured channels
// in the background.
func NotifyError(event, tenantID string, systemError error) {
	logrus.WithFields(logrus.Fields{"event": event, "tenant": tenantID}).Error(systemError)

	conf, err := config.Fetch()
	if err != nil {
		logrus.Error(err)
		return
	}
	alert := Alert{Event: event, TenantID: tenantID, Error: systemError.Error(), Time: time.Now().UTC()}
	go func() {
		_ = Notify(conf.Notification, alert)
	}()
}

func escape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}
