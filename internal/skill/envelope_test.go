package skill

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestEnvelope_Decode(t *testing.T) {
	t.Parallel()

	body := `{"version":"1.0",
		"session":{"new":false,"sessionId":"amzn1.echo-api.session.1","attributes":{"gen":2}},
		"request":{"type":"Alexa.Presentation.APL.UserEvent","requestId":"r-1","locale":"fr-FR",
			"token":"cam","arguments":["tick",1700000000000,"500",3,true]}}`

	var req RequestEnvelope
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, "amzn1.echo-api.session.1", req.Session.SessionID)
	assert.Equal(t, float64(2), req.Session.Attributes["gen"])
	assert.Equal(t, RequestUserEvent, req.Request.Type)
	assert.Equal(t, Arguments{"tick", "1700000000000", "500", "3", "true"}, req.Request.Arguments)
}

func TestRequestEnvelope_DecodeIntent(t *testing.T) {
	t.Parallel()

	body := `{"session":{"new":true,"sessionId":"s"},
		"request":{"type":"IntentRequest","intent":{"name":"OpenCameraByNumberIntent",
			"slots":{"numero":{"name":"numero","value":"3"},"rang":{"name":"rang"}}}}}`

	var req RequestEnvelope
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	require.NotNil(t, req.Request.Intent)
	assert.Equal(t, IntentOpenCamera, req.Request.Intent.Name)
	assert.Equal(t, "3", req.Request.Intent.Slots["numero"].Value)
	assert.Equal(t, "", req.Request.Intent.Slots["rang"].Value)
	assert.Nil(t, req.Session.Attributes)
}

func TestArguments_RejectsNonArray(t *testing.T) {
	t.Parallel()

	var a Arguments
	err := json.Unmarshal([]byte(`{"kind":"tick"}`), &a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arguments")
}

func TestResponseEnvelope_Encode(t *testing.T) {
	t.Parallel()

	t.Run("end session", func(t *testing.T) {
		resp := ResponseEnvelope{Version: envelopeVersion, Response: endSession()}
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"version":"1.0","response":{"shouldEndSession":true}}`, string(data))
		assert.True(t, resp.Response.EndsSession())
	})

	t.Run("speech keeps session open", func(t *testing.T) {
		resp := ResponseEnvelope{
			Version:           envelopeVersion,
			SessionAttributes: map[string]any{"gen": 3},
			Response:          Response{OutputSpeech: speak("Pardon ?")},
		}
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"version":"1.0","sessionAttributes":{"gen":3},
			"response":{"outputSpeech":{"type":"PlainText","text":"Pardon ?"}}}`, string(data))
		assert.False(t, resp.Response.EndsSession())
	})
}
